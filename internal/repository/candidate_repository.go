package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edusuite/siga-api/internal/models"
)

const candidateColumns = "id, admission_number, full_name, gender, birth_date, document_number, email, phone, guardian_name, guardian_phone, previous_school, first_choice_course_id, second_choice_course_id, term_id, status, created_at, updated_at"

// CandidateRepository handles persistence for admission candidates.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository instantiates a candidate repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// List returns candidates matching provided filters.
func (r *CandidateRepository) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error) {
	base := "FROM candidates WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR admission_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY admission_number ASC LIMIT %d OFFSET %d", candidateColumns, base, size, offset)

	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}
	return candidates, total, nil
}

// FindByID loads a candidate by identifier.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	query := fmt.Sprintf("SELECT %s FROM candidates WHERE id = $1", candidateColumns)
	var candidate models.Candidate
	if err := r.db.GetContext(ctx, &candidate, query, id); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// MaxSequenceForYear returns the highest admission-number sequence already
// assigned for the given calendar year (0 when none).
func (r *CandidateRepository) MaxSequenceForYear(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("INS%d", year)
	const query = `SELECT COALESCE(MAX(CAST(RIGHT(admission_number, 4) AS INTEGER)), 0) FROM candidates WHERE admission_number LIKE $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, prefix+"%"); err != nil {
		return 0, fmt.Errorf("max admission sequence: %w", err)
	}
	return max, nil
}

// Create inserts a new candidate record.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	const query = `INSERT INTO candidates (id, admission_number, full_name, gender, birth_date, document_number, email, phone, guardian_name, guardian_phone, previous_school, first_choice_course_id, second_choice_course_id, term_id, status, created_at, updated_at)
		VALUES (:id, :admission_number, :full_name, :gender, :birth_date, :document_number, :email, :phone, :guardian_name, :guardian_phone, :previous_school, :first_choice_course_id, :second_choice_course_id, :term_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// UpdateStatus moves a candidate to the given pipeline status.
func (r *CandidateRepository) UpdateStatus(ctx context.Context, id string, status models.CandidateStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE candidates SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update candidate status: %w", err)
	}
	return nil
}

// ListPaidByTerm returns paid candidates of a term in admission-number order,
// optionally capped. The stable ordering keeps exam distribution
// deterministic.
func (r *CandidateRepository) ListPaidByTerm(ctx context.Context, termID string, limit int) ([]models.Candidate, error) {
	query := fmt.Sprintf("SELECT %s FROM candidates WHERE term_id = $1 AND status = $2 ORDER BY admission_number ASC", candidateColumns)
	args := []interface{}{termID, models.CandidateStatusPaid}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list paid candidates: %w", err)
	}
	return candidates, nil
}

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation, used by the admission-number retry loop.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
