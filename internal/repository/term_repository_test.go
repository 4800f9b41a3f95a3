package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/siga-api/internal/models"
)

func newTermMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func termRow(id string, status models.TermStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "status", "is_active", "admission_open", "admission_close", "created_at", "updated_at"}).
		AddRow(id, "Ano Letivo "+id, now, now.AddDate(0, 10, 0), status, status == models.TermStatusActive, true, nil, now, now)
}

func expectCloseCascade(mock sqlmock.Sqlmock, termID string) {
	mock.ExpectExec("UPDATE class_sections SET status").
		WithArgs(models.SectionStatusConcluded, sqlmock.AnyArg(), termID, models.SectionStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE students SET status").
		WithArgs(models.StudentStatusConcluded, sqlmock.AnyArg(), models.StudentStatusActive, termID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs(models.EnrollmentStatusConcluded, sqlmock.AnyArg(), termID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 10))
}

func expectReopenCascade(mock sqlmock.Sqlmock, termID string) {
	mock.ExpectExec("UPDATE class_sections SET status").
		WithArgs(models.SectionStatusActive, sqlmock.AnyArg(), termID, models.SectionStatusConcluded).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE students SET status").
		WithArgs(models.StudentStatusActive, sqlmock.AnyArg(), models.StudentStatusConcluded, termID, models.EnrollmentStatusConcluded).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs(models.EnrollmentStatusActive, sqlmock.AnyArg(), termID, models.EnrollmentStatusConcluded).
		WillReturnResult(sqlmock.NewResult(0, 10))
}

func expectSetStatus(mock sqlmock.Sqlmock, termID string, status models.TermStatus) {
	mock.ExpectExec("UPDATE academic_terms SET status").
		WithArgs(status, status == models.TermStatusActive, sqlmock.AnyArg(), termID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestTermRepositoryActivateClosesPredecessor(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE status = \\$1 AND id <> \\$2 LIMIT 1 FOR UPDATE").
		WithArgs(models.TermStatusActive, "term-new").
		WillReturnRows(termRow("term-old", models.TermStatusActive))
	expectCloseCascade(mock, "term-old")
	expectSetStatus(mock, "term-old", models.TermStatusClosed)
	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE id = \\$1 FOR UPDATE").
		WithArgs("term-new").
		WillReturnRows(termRow("term-new", models.TermStatusPlanned))
	expectSetStatus(mock, "term-new", models.TermStatusActive)
	mock.ExpectExec("UPDATE academic_terms SET status = \\$1, is_active = FALSE").
		WithArgs(models.TermStatusClosed, sqlmock.AnyArg(), models.TermStatusActive, "term-new").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Activate(context.Background(), "term-new")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryActivateReopensClosedTarget(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE status = \\$1 AND id <> \\$2 LIMIT 1 FOR UPDATE").
		WithArgs(models.TermStatusActive, "term-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE id = \\$1 FOR UPDATE").
		WithArgs("term-1").
		WillReturnRows(termRow("term-1", models.TermStatusClosed))
	expectReopenCascade(mock, "term-1")
	expectSetStatus(mock, "term-1", models.TermStatusActive)
	mock.ExpectExec("UPDATE academic_terms SET status = \\$1, is_active = FALSE").
		WithArgs(models.TermStatusClosed, sqlmock.AnyArg(), models.TermStatusActive, "term-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Activate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryActivateRollsBackOnCascadeFailure(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE status = \\$1 AND id <> \\$2 LIMIT 1 FOR UPDATE").
		WithArgs(models.TermStatusActive, "term-new").
		WillReturnRows(termRow("term-old", models.TermStatusActive))
	mock.ExpectExec("UPDATE class_sections SET status").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Activate(context.Background(), "term-new")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryClose(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	expectCloseCascade(mock, "term-1")
	expectSetStatus(mock, "term-1", models.TermStatusClosed)
	mock.ExpectCommit()

	err := repo.Close(context.Background(), "term-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery("SELECT .+ FROM academic_terms WHERE status = \\$1 LIMIT 1").
		WithArgs(models.TermStatusActive).
		WillReturnRows(termRow("term-1", models.TermStatusActive))

	term, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "term-1", term.ID)
	assert.True(t, term.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery("SELECT 1 FROM academic_terms WHERE name = \\$1 LIMIT 1").
		WithArgs("Ano Letivo 2026").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_terms WHERE name = $1 AND id <> $2 LIMIT 1")).
		WithArgs("Ano Letivo 2026", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByName(context.Background(), "Ano Letivo 2026", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByName(context.Background(), "Ano Letivo 2026", "term-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
