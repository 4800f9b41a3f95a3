package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusuite/siga-api/internal/models"
)

const enrollmentColumns = "id, student_id, section_id, term_id, status, kind, enrollment_date, created_at, updated_at"

// EnrollmentRepository handles persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository instantiates an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student/section/term context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
		JOIN students s ON s.id = e.student_id
		LEFT JOIN class_sections cs ON cs.id = e.section_id
		JOIN academic_terms t ON t.id = e.term_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.section_id, e.term_id, e.status, e.kind, e.enrollment_date, e.created_at, e.updated_at,
		s.full_name AS student_name, cs.code AS section_code, t.name AS term_name %s ORDER BY e.enrollment_date DESC LIMIT %d OFFSET %d`, base, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID loads an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, section_id, term_id, status, kind, enrollment_date, created_at, updated_at)
		VALUES (:id, :student_id, :section_id, :term_id, :status, :kind, :enrollment_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// SwapSections exchanges the section references of two enrollments and
// mirrors the change onto both students' current-section pointer, in one
// transaction.
func (r *EnrollmentRepository) SwapSections(ctx context.Context, a, b *models.Enrollment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET section_id = $1, kind = $2, updated_at = $3 WHERE id = $4`,
		b.SectionID, models.EnrollmentKindEdit, now, a.ID); err != nil {
		return fmt.Errorf("swap enrollment %s: %w", a.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET section_id = $1, kind = $2, updated_at = $3 WHERE id = $4`,
		a.SectionID, models.EnrollmentKindEdit, now, b.ID); err != nil {
		return fmt.Errorf("swap enrollment %s: %w", b.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE students SET current_section_id = $1, updated_at = $2 WHERE id = $3`,
		b.SectionID, now, a.StudentID); err != nil {
		return fmt.Errorf("mirror student %s: %w", a.StudentID, err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE students SET current_section_id = $1, updated_at = $2 WHERE id = $3`,
		a.SectionID, now, b.StudentID); err != nil {
		return fmt.Errorf("mirror student %s: %w", b.StudentID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit swap tx: %w", err)
	}
	return nil
}

// CountPriorByStudent returns how many enrollments the student already holds,
// used for the document-waiver check on direct matriculation.
func (r *EnrollmentRepository) CountPriorByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count prior enrollments: %w", err)
	}
	return count, nil
}
