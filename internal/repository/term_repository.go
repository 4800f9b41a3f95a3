package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusuite/siga-api/internal/models"
)

const termColumns = "id, name, start_date, end_date, status, is_active, admission_open, admission_close, created_at, updated_at"

// TermRepository handles persistence for academic terms and runs the status
// cascades that accompany activation, closure and reopening.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM academic_terms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "start_date": true, "end_date": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_terms WHERE id = $1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActive returns the currently active term.
func (r *TermRepository) FindActive(ctx context.Context) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_terms WHERE status = $1 LIMIT 1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, models.TermStatusActive); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByName checks name uniqueness.
func (r *TermRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	base := "SELECT 1 FROM academic_terms WHERE name = $1"
	args := []interface{}{name}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term name: %w", err)
	}
	return true, nil
}

// CountAll returns the total number of terms ever created.
func (r *TermRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM academic_terms`); err != nil {
		return 0, fmt.Errorf("count terms: %w", err)
	}
	return count, nil
}

// CountOwned returns how many sections and enrollments reference the term.
func (r *TermRepository) CountOwned(ctx context.Context, id string) (int, error) {
	const query = `SELECT (SELECT COUNT(*) FROM class_sections WHERE term_id = $1) + (SELECT COUNT(*) FROM enrollments WHERE term_id = $1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term references: %w", err)
	}
	return count, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now
	term.IsActive = term.Status == models.TermStatusActive

	const query = `INSERT INTO academic_terms (id, name, start_date, end_date, status, is_active, admission_open, admission_close, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :status, :is_active, :admission_open, :admission_close, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies an existing term's descriptive fields. Status changes go
// through Activate/Close/Reopen only.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_terms SET name = :name, start_date = :start_date, end_date = :end_date, admission_open = :admission_open, admission_close = :admission_close, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Delete removes a term. Callers must have verified it owns no sections or
// enrollments.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM academic_terms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// Activate makes the given term the single active one. The previous active
// term (if any) is closed with its full cascade, the target is flipped to
// ACTIVE (reopen-cascading when it was closed), and any other term still
// marked active is force-closed as a defensive sweep. Everything runs in one
// serializable transaction.
func (r *TermRepository) Activate(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var current models.Term
	switch err = tx.GetContext(ctx, &current, fmt.Sprintf("SELECT %s FROM academic_terms WHERE status = $1 AND id <> $2 LIMIT 1 FOR UPDATE", termColumns), models.TermStatusActive, id); err {
	case nil:
		if err = closeCascade(ctx, tx, current.ID, now); err != nil {
			return err
		}
		if err = setTermStatus(ctx, tx, current.ID, models.TermStatusClosed, now); err != nil {
			return err
		}
	case sql.ErrNoRows:
		err = nil
	default:
		return fmt.Errorf("load active term: %w", err)
	}

	var target models.Term
	if err = tx.GetContext(ctx, &target, fmt.Sprintf("SELECT %s FROM academic_terms WHERE id = $1 FOR UPDATE", termColumns), id); err != nil {
		return fmt.Errorf("load target term: %w", err)
	}
	if target.Status == models.TermStatusClosed {
		if err = reopenCascade(ctx, tx, id, now); err != nil {
			return err
		}
	}
	if err = setTermStatus(ctx, tx, id, models.TermStatusActive, now); err != nil {
		return err
	}

	// Sweep: a concurrent activation that slipped past the row locks leaves a
	// second active term; force-close every other one.
	if _, err = tx.ExecContext(ctx, `UPDATE academic_terms SET status = $1, is_active = FALSE, updated_at = $2 WHERE status = $3 AND id <> $4`,
		models.TermStatusClosed, now, models.TermStatusActive, id); err != nil {
		return fmt.Errorf("sweep stale active terms: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}

// Close concludes the term and cascades to its sections, enrollments and
// students in the same transaction.
func (r *TermRepository) Close(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin close tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = closeCascade(ctx, tx, id, now); err != nil {
		return err
	}
	if err = setTermStatus(ctx, tx, id, models.TermStatusClosed, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit close tx: %w", err)
	}
	return nil
}

func setTermStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.TermStatus, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE academic_terms SET status = $1, is_active = $2, updated_at = $3 WHERE id = $4`,
		status, status == models.TermStatusActive, now, id); err != nil {
		return fmt.Errorf("set term status: %w", err)
	}
	return nil
}

// closeCascade bulk-concludes the term's active sections and enrollments and
// the active students behind those enrollments. Set-oriented updates only;
// terminal statuses (TRANSFERRED, WITHDRAWN) are untouched.
func closeCascade(ctx context.Context, tx *sqlx.Tx, termID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE class_sections SET status = $1, updated_at = $2 WHERE term_id = $3 AND status = $4`,
		models.SectionStatusConcluded, now, termID, models.SectionStatusActive); err != nil {
		return fmt.Errorf("close cascade sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET status = $1, updated_at = $2 WHERE status = $3 AND id IN (SELECT student_id FROM enrollments WHERE term_id = $4 AND status IN ($5, $6))`,
		models.StudentStatusConcluded, now, models.StudentStatusActive, termID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed); err != nil {
		return fmt.Errorf("close cascade students: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = $1, updated_at = $2 WHERE term_id = $3 AND status IN ($4, $5)`,
		models.EnrollmentStatusConcluded, now, termID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed); err != nil {
		return fmt.Errorf("close cascade enrollments: %w", err)
	}
	return nil
}

// reopenCascade is the exact inverse of closeCascade.
func reopenCascade(ctx context.Context, tx *sqlx.Tx, termID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE class_sections SET status = $1, updated_at = $2 WHERE term_id = $3 AND status = $4`,
		models.SectionStatusActive, now, termID, models.SectionStatusConcluded); err != nil {
		return fmt.Errorf("reopen cascade sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET status = $1, updated_at = $2 WHERE status = $3 AND id IN (SELECT student_id FROM enrollments WHERE term_id = $4 AND status = $5)`,
		models.StudentStatusActive, now, models.StudentStatusConcluded, termID, models.EnrollmentStatusConcluded); err != nil {
		return fmt.Errorf("reopen cascade students: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = $1, updated_at = $2 WHERE term_id = $3 AND status = $4`,
		models.EnrollmentStatusActive, now, termID, models.EnrollmentStatusConcluded); err != nil {
		return fmt.Errorf("reopen cascade enrollments: %w", err)
	}
	return nil
}
