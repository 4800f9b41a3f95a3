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

// WaitlistRepository handles persistence for candidate waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository instantiates a waitlist repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Create inserts a waitlist entry.
func (r *WaitlistRepository) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.EnteredAt.IsZero() {
		entry.EnteredAt = time.Now().UTC()
	}
	const query = `INSERT INTO waitlist_entries (id, candidate_id, priority, status, entered_at)
		VALUES (:id, :candidate_id, :priority, :status, :entered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// CallNext selects the highest-priority waiting entry (earliest entry time
// breaks ties) and marks it CALLED. The row is locked with SKIP LOCKED so two
// operators cannot call the same entry.
func (r *WaitlistRepository) CallNext(ctx context.Context) (entry *models.WaitlistEntry, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin call next tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var selected models.WaitlistEntry
	err = tx.GetContext(ctx, &selected, `SELECT id, candidate_id, priority, status, entered_at FROM waitlist_entries
		WHERE status = $1 ORDER BY priority DESC, entered_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`, models.WaitlistStatusWaiting)
	if err != nil {
		if err == sql.ErrNoRows {
			_ = tx.Rollback()
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("select next waitlist entry: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE waitlist_entries SET status = $1 WHERE id = $2`, models.WaitlistStatusCalled, selected.ID); err != nil {
		return nil, fmt.Errorf("mark waitlist entry called: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit call next tx: %w", err)
	}

	selected.Status = models.WaitlistStatusCalled
	return &selected, nil
}
