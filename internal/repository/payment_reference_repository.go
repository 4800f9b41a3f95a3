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

const referenceColumns = "id, candidate_id, code, amount, status, issued_at, expires_at, paid_at"

// PaymentReferenceRepository handles persistence for admission-fee payment
// references.
type PaymentReferenceRepository struct {
	db *sqlx.DB
}

// NewPaymentReferenceRepository instantiates a payment reference repository.
func NewPaymentReferenceRepository(db *sqlx.DB) *PaymentReferenceRepository {
	return &PaymentReferenceRepository{db: db}
}

// ListByCandidate returns all references ever issued to a candidate, newest
// first.
func (r *PaymentReferenceRepository) ListByCandidate(ctx context.Context, candidateID string) ([]models.PaymentReference, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_references WHERE candidate_id = $1 ORDER BY issued_at DESC", referenceColumns)
	var refs []models.PaymentReference
	if err := r.db.SelectContext(ctx, &refs, query, candidateID); err != nil {
		return nil, fmt.Errorf("list payment references: %w", err)
	}
	return refs, nil
}

// FindByID loads a reference by identifier.
func (r *PaymentReferenceRepository) FindByID(ctx context.Context, id string) (*models.PaymentReference, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_references WHERE id = $1", referenceColumns)
	var ref models.PaymentReference
	if err := r.db.GetContext(ctx, &ref, query, id); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Create inserts a new payment reference.
func (r *PaymentReferenceRepository) Create(ctx context.Context, ref *models.PaymentReference) error {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	const query = `INSERT INTO payment_references (id, candidate_id, code, amount, status, issued_at, expires_at, paid_at)
		VALUES (:id, :candidate_id, :code, :amount, :status, :issued_at, :expires_at, :paid_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ref); err != nil {
		return fmt.Errorf("create payment reference: %w", err)
	}
	return nil
}

// MarkPaid settles the reference and, in the same transaction, moves the
// candidate to PAID and upserts the placeholder exam booking so the candidate
// holds a slot before bulk distribution runs.
func (r *PaymentReferenceRepository) MarkPaid(ctx context.Context, refID, candidateID, roomID string, examAt time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark paid tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE payment_references SET status = $1, paid_at = $2 WHERE id = $3`,
		models.ReferenceStatusPaid, now, refID); err != nil {
		return fmt.Errorf("mark reference paid: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE candidates SET status = $1, updated_at = $2 WHERE id = $3`,
		models.CandidateStatusPaid, now, candidateID); err != nil {
		return fmt.Errorf("mark candidate paid: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO admission_exams (id, candidate_id, room_id, scheduled_at, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (candidate_id) DO UPDATE SET room_id = EXCLUDED.room_id, scheduled_at = EXCLUDED.scheduled_at, updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), candidateID, roomID, examAt, now); err != nil {
		return fmt.Errorf("upsert placeholder exam: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mark paid tx: %w", err)
	}
	return nil
}

// HasPaid reports whether the candidate already settled a reference.
func (r *PaymentReferenceRepository) HasPaid(ctx context.Context, candidateID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM payment_references WHERE candidate_id = $1 AND status = $2 LIMIT 1`,
		candidateID, models.ReferenceStatusPaid)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check paid reference: %w", err)
	}
	return true, nil
}
