package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusuite/siga-api/internal/models"
)

// MatriculationParams carries everything the matriculation unit of work
// needs. Identity resolution runs on DocumentNumber then Email; when neither
// matches an existing student one is created from the supplied fields.
type MatriculationParams struct {
	Student       models.Student
	GuardianName  string
	GuardianPhone string
	SectionID     string
	TermID        string
	CandidateID   string
}

// MatriculationResult reports what the unit of work resolved or created.
type MatriculationResult struct {
	Student         models.Student
	Enrollment      models.Enrollment
	StudentCreated  bool
	EnrollmentAdded bool
}

// MatriculationRepository runs the admission-to-enrollment conversion as a
// single transaction: resolve-or-create student, resolve-or-create-and-link
// guardian, create the enrollment unless an active one exists, mirror the
// student's current-section pointer and settle the candidate status. Partial
// completion is never observable.
type MatriculationRepository struct {
	db *sqlx.DB
}

// NewMatriculationRepository instantiates a matriculation repository.
func NewMatriculationRepository(db *sqlx.DB) *MatriculationRepository {
	return &MatriculationRepository{db: db}
}

// Matriculate executes the unit of work. Calling it twice with the same
// inputs resolves the same student and enrollment instead of duplicating
// them.
func (r *MatriculationRepository) Matriculate(ctx context.Context, params MatriculationParams) (result *MatriculationResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin matriculation tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	result = &MatriculationResult{}

	student, err := r.resolveStudent(ctx, tx, params.Student)
	if err != nil {
		return nil, err
	}
	if student == nil {
		student = &params.Student
		student.ID = uuid.NewString()
		student.Status = models.StudentStatusActive
		student.CreatedAt = now
		student.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO students (id, full_name, gender, birth_date, document_number, email, phone, address, guardian_id, status, current_section_id, created_at, updated_at)
			VALUES (:id, :full_name, :gender, :birth_date, :document_number, :email, :phone, :address, :guardian_id, :status, :current_section_id, :created_at, :updated_at)`, student); err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
		result.StudentCreated = true
	}

	if params.GuardianPhone != "" && student.GuardianID == nil {
		var guardianID string
		if guardianID, err = r.resolveGuardian(ctx, tx, params.GuardianName, params.GuardianPhone, now); err != nil {
			return nil, err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE students SET guardian_id = $1, updated_at = $2 WHERE id = $3`, guardianID, now, student.ID); err != nil {
			return nil, fmt.Errorf("link guardian: %w", err)
		}
		student.GuardianID = &guardianID
	}

	var enrollment models.Enrollment
	err = tx.GetContext(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status IN ($3, $4) LIMIT 1`,
		student.ID, params.SectionID, models.EnrollmentStatusActive, models.EnrollmentStatusConfirmed)
	switch err {
	case nil:
	case sql.ErrNoRows:
		enrollment = models.Enrollment{
			ID:             uuid.NewString(),
			StudentID:      student.ID,
			SectionID:      &params.SectionID,
			TermID:         params.TermID,
			Status:         models.EnrollmentStatusActive,
			Kind:           models.EnrollmentKindNew,
			EnrollmentDate: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO enrollments (id, student_id, section_id, term_id, status, kind, enrollment_date, created_at, updated_at)
			VALUES (:id, :student_id, :section_id, :term_id, :status, :kind, :enrollment_date, :created_at, :updated_at)`, &enrollment); err != nil {
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
		result.EnrollmentAdded = true
	default:
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE students SET current_section_id = $1, status = $2, updated_at = $3 WHERE id = $4`,
		params.SectionID, models.StudentStatusActive, now, student.ID); err != nil {
		return nil, fmt.Errorf("mirror current section: %w", err)
	}
	student.CurrentSectionID = &params.SectionID
	student.Status = models.StudentStatusActive

	if params.CandidateID != "" {
		if _, err = tx.ExecContext(ctx, `UPDATE candidates SET status = $1, updated_at = $2 WHERE id = $3`,
			models.CandidateStatusEnrolled, now, params.CandidateID); err != nil {
			return nil, fmt.Errorf("settle candidate: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit matriculation tx: %w", err)
	}

	result.Student = *student
	result.Enrollment = enrollment
	return result, nil
}

func (r *MatriculationRepository) resolveStudent(ctx context.Context, tx *sqlx.Tx, identity models.Student) (*models.Student, error) {
	var student models.Student
	if identity.DocumentNumber != "" {
		err := tx.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE document_number = $1 LIMIT 1`, identity.DocumentNumber)
		if err == nil {
			return &student, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("find student by document: %w", err)
		}
	}
	if identity.Email != "" {
		err := tx.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE email = $1 LIMIT 1`, identity.Email)
		if err == nil {
			return &student, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("find student by email: %w", err)
		}
	}
	return nil, nil
}

func (r *MatriculationRepository) resolveGuardian(ctx context.Context, tx *sqlx.Tx, name, phone string, now time.Time) (string, error) {
	var guardian models.Guardian
	err := tx.GetContext(ctx, &guardian, `SELECT id, full_name, phone, email, created_at, updated_at FROM guardians WHERE phone = $1 LIMIT 1`, phone)
	if err == nil {
		return guardian.ID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("find guardian by phone: %w", err)
	}

	guardian = models.Guardian{ID: uuid.NewString(), FullName: name, Phone: phone, CreatedAt: now, UpdatedAt: now}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO guardians (id, full_name, phone, email, created_at, updated_at)
		VALUES (:id, :full_name, :phone, :email, :created_at, :updated_at)`, &guardian); err != nil {
		return "", fmt.Errorf("create guardian: %w", err)
	}
	return guardian.ID, nil
}
