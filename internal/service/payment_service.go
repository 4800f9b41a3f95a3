package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/pkg/config"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type referenceRepository interface {
	ListByCandidate(ctx context.Context, candidateID string) ([]models.PaymentReference, error)
	FindByID(ctx context.Context, id string) (*models.PaymentReference, error)
	Create(ctx context.Context, ref *models.PaymentReference) error
	MarkPaid(ctx context.Context, refID, candidateID, roomID string, examAt time.Time) error
	HasPaid(ctx context.Context, candidateID string) (bool, error)
}

type candidateReader interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
}

type firstRoomReader interface {
	FindFirst(ctx context.Context) (*models.Room, error)
}

// PaymentService issues, caps and settles admission-fee payment references.
type PaymentService struct {
	refs       referenceRepository
	candidates candidateReader
	rooms      firstRoomReader
	guard      TermGuard
	audit      *AuditService
	cfg        config.AdmissionConfig
	examCfg    config.ExamConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(refs referenceRepository, candidates candidateReader, rooms firstRoomReader, guard TermGuard, audit *AuditService, cfg config.AdmissionConfig, examCfg config.ExamConfig, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = 2
	}
	if cfg.ReferenceTTL <= 0 {
		cfg.ReferenceTTL = 48 * time.Hour
	}
	if examCfg.PlaceholderLead <= 0 {
		examCfg.PlaceholderLead = 7 * 24 * time.Hour
	}
	return &PaymentService{refs: refs, candidates: candidates, rooms: rooms, guard: guard, audit: audit, cfg: cfg, examCfg: examCfg, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// IssueReference mints a payment reference for the candidate's admission fee,
// doubling the amount when a second course choice is present. A paid
// reference blocks new issues; a still-valid pending one is returned
// unchanged; beyond the cap the candidate is locked out.
func (s *PaymentService) IssueReference(ctx context.Context, candidateID string) (*models.PaymentReference, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	if err := s.guard.IsMutable(ctx, candidate.TermID); err != nil {
		return nil, err
	}

	existing, err := s.refs.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list references")
	}

	now := s.now()
	for _, ref := range existing {
		if ref.Status == models.ReferenceStatusPaid {
			return nil, appErrors.WithDetails(appErrors.ErrAlreadyPaid, "", map[string]interface{}{
				"candidate_id": candidateID,
				"reference_id": ref.ID,
			})
		}
		if !ref.Expired(now) {
			// Still valid; do not mint a duplicate.
			return &ref, nil
		}
	}

	if len(existing) >= s.cfg.MaxReferences {
		return nil, appErrors.WithDetails(appErrors.ErrReferenceLimitExceeded, "", map[string]interface{}{
			"candidate_id": candidateID,
			"issued":       len(existing),
		})
	}

	amount := s.cfg.BaseFee
	if candidate.SecondChoiceCourseID != nil {
		amount *= 2
	}

	ref := &models.PaymentReference{
		CandidateID: candidateID,
		Code:        generateReferenceCode(now),
		Amount:      amount,
		Status:      models.ReferenceStatusPending,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.ReferenceTTL),
	}
	if err := s.refs.Create(ctx, ref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reference")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionReferenceIssue, Resource: "payment_reference", ResourceID: ref.ID, After: ref})
	return ref, nil
}

// MarkPaid settles a pending reference, flips the candidate to PAID and books
// a placeholder exam slot (first room, one week out) so the candidate holds a
// slot before bulk distribution runs.
func (s *PaymentService) MarkPaid(ctx context.Context, referenceID string) (*models.PaymentReference, error) {
	ref, err := s.refs.FindByID(ctx, referenceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment reference not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference")
	}
	if ref.Status == models.ReferenceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "reference already paid")
	}

	candidate, err := s.candidates.FindByID(ctx, ref.CandidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	if err := s.guard.IsMutable(ctx, candidate.TermID); err != nil {
		return nil, err
	}

	room, err := s.rooms.FindFirst(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no exam room available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	now := s.now()
	before := *ref
	if err := s.refs.MarkPaid(ctx, ref.ID, ref.CandidateID, room.ID, now.Add(s.examCfg.PlaceholderLead)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle reference")
	}

	ref.Status = models.ReferenceStatusPaid
	ref.PaidAt = &now
	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionReferencePaid, Resource: "payment_reference", ResourceID: ref.ID, Before: before, After: ref})
	return ref, nil
}

// PaymentStatus reports whether the candidate has a settled reference.
// Candidates poll this while waiting for bank confirmation.
func (s *PaymentService) PaymentStatus(ctx context.Context, candidateID string) (bool, error) {
	if _, err := s.candidates.FindByID(ctx, candidateID); err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	paid, err := s.refs.HasPaid(ctx, candidateID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment status")
	}
	return paid, nil
}

// ListReferences returns all references of a candidate, newest first.
func (s *PaymentService) ListReferences(ctx context.Context, candidateID string) ([]models.PaymentReference, error) {
	if _, err := s.candidates.FindByID(ctx, candidateID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	refs, err := s.refs.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list references")
	}
	return refs, nil
}

// generateReferenceCode produces a 12-digit bank reference. Codes embed the
// issue day so reconciliation can bucket them.
func generateReferenceCode(now time.Time) string {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("%s%06d", now.Format("060102"), n.Int64())
}
