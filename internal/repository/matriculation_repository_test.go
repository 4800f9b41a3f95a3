package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/siga-api/internal/models"
)

func newMatriculationMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "gender", "birth_date", "document_number", "email", "phone", "address", "guardian_id", "status", "current_section_id", "created_at", "updated_at"})
}

func matriculationEnrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "section_id", "term_id", "status", "kind", "enrollment_date", "created_at", "updated_at"})
}

func matriculationParams() MatriculationParams {
	return MatriculationParams{
		Student: models.Student{
			FullName:       "Ana Paula Mendes",
			Gender:         "F",
			BirthDate:      time.Date(2010, 5, 12, 0, 0, 0, 0, time.UTC),
			DocumentNumber: "004512879LA041",
			Email:          "ana.mendes@example.com",
			Phone:          "+244923000111",
		},
		GuardianName:  "Paula Mendes",
		GuardianPhone: "+244923000222",
		SectionID:     "sec-1",
		TermID:        "term-1",
		CandidateID:   "cand-1",
	}
}

func TestMatriculationRepositoryResolvesExistingStudent(t *testing.T) {
	db, mock, cleanup := newMatriculationMock(t)
	defer cleanup()
	repo := NewMatriculationRepository(db)

	params := matriculationParams()
	now := time.Now()
	guardianID := "guard-1"

	mock.ExpectBegin()
	mock.ExpectQuery("FROM students WHERE document_number").
		WithArgs(params.Student.DocumentNumber).
		WillReturnRows(studentRows().AddRow("stud-1", params.Student.FullName, "F", params.Student.BirthDate, params.Student.DocumentNumber, params.Student.Email, params.Student.Phone, "", guardianID, models.StudentStatusActive, nil, now, now))
	mock.ExpectQuery("FROM enrollments WHERE student_id").
		WithArgs("stud-1", params.SectionID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed).
		WillReturnRows(matriculationEnrollmentRows())
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET current_section_id").
		WithArgs(params.SectionID, models.StudentStatusActive, sqlmock.AnyArg(), "stud-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE candidates SET status").
		WithArgs(models.CandidateStatusEnrolled, sqlmock.AnyArg(), params.CandidateID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Matriculate(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.StudentCreated)
	assert.True(t, result.EnrollmentAdded)
	assert.Equal(t, "stud-1", result.Student.ID)
	assert.Equal(t, "stud-1", result.Enrollment.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatriculationRepositoryReusesActiveEnrollment(t *testing.T) {
	db, mock, cleanup := newMatriculationMock(t)
	defer cleanup()
	repo := NewMatriculationRepository(db)

	params := matriculationParams()
	params.CandidateID = ""
	now := time.Now()
	guardianID := "guard-1"

	mock.ExpectBegin()
	mock.ExpectQuery("FROM students WHERE document_number").
		WithArgs(params.Student.DocumentNumber).
		WillReturnRows(studentRows().AddRow("stud-1", params.Student.FullName, "F", params.Student.BirthDate, params.Student.DocumentNumber, params.Student.Email, params.Student.Phone, "", guardianID, models.StudentStatusActive, "sec-1", now, now))
	mock.ExpectQuery("FROM enrollments WHERE student_id").
		WithArgs("stud-1", params.SectionID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed).
		WillReturnRows(matriculationEnrollmentRows().AddRow("enr-1", "stud-1", "sec-1", "term-1", models.EnrollmentStatusActive, models.EnrollmentKindNew, now, now, now))
	mock.ExpectExec("UPDATE students SET current_section_id").
		WithArgs(params.SectionID, models.StudentStatusActive, sqlmock.AnyArg(), "stud-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Matriculate(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.StudentCreated)
	assert.False(t, result.EnrollmentAdded)
	assert.Equal(t, "enr-1", result.Enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatriculationRepositoryRollsBackOnEnrollmentFailure(t *testing.T) {
	db, mock, cleanup := newMatriculationMock(t)
	defer cleanup()
	repo := NewMatriculationRepository(db)

	params := matriculationParams()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM students WHERE document_number").
		WithArgs(params.Student.DocumentNumber).
		WillReturnRows(studentRows())
	mock.ExpectQuery("FROM students WHERE email").
		WithArgs(params.Student.Email).
		WillReturnRows(studentRows())
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM guardians WHERE phone").
		WithArgs(params.GuardianPhone).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "phone", "email", "created_at", "updated_at"}))
	mock.ExpectExec("INSERT INTO guardians").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET guardian_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM enrollments WHERE student_id").
		WithArgs(sqlmock.AnyArg(), params.SectionID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed).
		WillReturnRows(matriculationEnrollmentRows())
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Matriculate(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create enrollment")
	assert.NoError(t, mock.ExpectationsWereMet())
}
