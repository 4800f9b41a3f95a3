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

const sectionColumns = "id, code, room_id, course_id, grade_level_id, shift_id, capacity, status, term_id, created_at, updated_at"

// SectionRepository handles persistence for class sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository instantiates a class section repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections matching provided filters.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, int, error) {
	base := "FROM class_sections WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d", sectionColumns, base, size, offset)

	var sections []models.ClassSection
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID loads a section by identifier.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sections WHERE id = $1", sectionColumns)
	var section models.ClassSection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ExistsByCode checks code uniqueness.
func (r *SectionRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	base := "SELECT 1 FROM class_sections WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section code: %w", err)
	}
	return true, nil
}

// CodeParts loads the catalog attributes a section code derives from.
func (r *SectionRepository) CodeParts(ctx context.Context, roomID, courseID, gradeLevelID, shiftID string) (*models.SectionCodeParts, error) {
	const query = `SELECT c.code AS course_code, g.level AS grade_level, sh.code AS shift_code, rm.number AS room_number
		FROM courses c, grade_levels g, shifts sh, rooms rm
		WHERE c.id = $1 AND g.id = $2 AND sh.id = $3 AND rm.id = $4`
	var parts models.SectionCodeParts
	if err := r.db.GetContext(ctx, &parts, query, courseID, gradeLevelID, shiftID, roomID); err != nil {
		return nil, err
	}
	return &parts, nil
}

// Create inserts a new class section record.
func (r *SectionRepository) Create(ctx context.Context, section *models.ClassSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	const query = `INSERT INTO class_sections (id, code, room_id, course_id, grade_level_id, shift_id, capacity, status, term_id, created_at, updated_at)
		VALUES (:id, :code, :room_id, :course_id, :grade_level_id, :shift_id, :capacity, :status, :term_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update modifies an existing class section.
func (r *SectionRepository) Update(ctx context.Context, section *models.ClassSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sections SET code = :code, room_id = :room_id, course_id = :course_id, grade_level_id = :grade_level_id, shift_id = :shift_id, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}
