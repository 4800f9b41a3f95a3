package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusuite/siga-api/internal/models"
)

const examColumns = "id, candidate_id, room_id, scheduled_at, score, completed, created_at, updated_at"

// ExamRepository handles persistence for admission exam bookings.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository instantiates an exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByCandidate loads the exam booked for a candidate.
func (r *ExamRepository) FindByCandidate(ctx context.Context, candidateID string) (*models.AdmissionExam, error) {
	query := fmt.Sprintf("SELECT %s FROM admission_exams WHERE candidate_id = $1", examColumns)
	var exam models.AdmissionExam
	if err := r.db.GetContext(ctx, &exam, query, candidateID); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Upsert books or re-slots the candidate's exam at the given room and time.
func (r *ExamRepository) Upsert(ctx context.Context, candidateID, roomID string, scheduledAt time.Time) error {
	now := time.Now().UTC()
	const query = `INSERT INTO admission_exams (id, candidate_id, room_id, scheduled_at, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (candidate_id) DO UPDATE SET room_id = EXCLUDED.room_id, scheduled_at = EXCLUDED.scheduled_at, completed = FALSE, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), candidateID, roomID, scheduledAt, now); err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}
	return nil
}

// SetScore writes the exam score once and flags the exam completed.
func (r *ExamRepository) SetScore(ctx context.Context, candidateID string, score float64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE admission_exams SET score = $1, completed = TRUE, updated_at = $2 WHERE candidate_id = $3`,
		score, time.Now().UTC(), candidateID); err != nil {
		return fmt.Errorf("set exam score: %w", err)
	}
	return nil
}
