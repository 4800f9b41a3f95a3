package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/siga-api/internal/models"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type mockReferenceRepo struct {
	refs    map[string][]models.PaymentReference
	created []models.PaymentReference
	paid    []string
}

func (m *mockReferenceRepo) ListByCandidate(ctx context.Context, candidateID string) ([]models.PaymentReference, error) {
	return m.refs[candidateID], nil
}

func (m *mockReferenceRepo) FindByID(ctx context.Context, id string) (*models.PaymentReference, error) {
	for _, refs := range m.refs {
		for _, ref := range refs {
			if ref.ID == id {
				found := ref
				return &found, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockReferenceRepo) Create(ctx context.Context, ref *models.PaymentReference) error {
	if ref.ID == "" {
		ref.ID = "ref-new"
	}
	if m.refs == nil {
		m.refs = make(map[string][]models.PaymentReference)
	}
	m.refs[ref.CandidateID] = append(m.refs[ref.CandidateID], *ref)
	m.created = append(m.created, *ref)
	return nil
}

func (m *mockReferenceRepo) MarkPaid(ctx context.Context, refID, candidateID, roomID string, examAt time.Time) error {
	m.paid = append(m.paid, refID)
	return nil
}

func (m *mockReferenceRepo) HasPaid(ctx context.Context, candidateID string) (bool, error) {
	for _, ref := range m.refs[candidateID] {
		if ref.Status == models.ReferenceStatusPaid {
			return true, nil
		}
	}
	return false, nil
}

type mockFirstRoom struct{ room *models.Room }

func (m *mockFirstRoom) FindFirst(ctx context.Context) (*models.Room, error) {
	if m.room == nil {
		return nil, sql.ErrNoRows
	}
	return m.room, nil
}

var paymentNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newPaymentService(refs *mockReferenceRepo, candidates *mockCandidateRepo) *PaymentService {
	guard := &stubTermGuard{}
	rooms := &mockFirstRoom{room: &models.Room{ID: "room-1", Number: 1, Capacity: 30}}
	svc := NewPaymentService(refs, candidates, rooms, guard, NewAuditService(nil, nil), admissionConfig(), examConfig(), nil)
	svc.now = func() time.Time { return paymentNow }
	return svc
}

func TestIssueReferenceMintsWithBaseFee(t *testing.T) {
	refs := &mockReferenceRepo{}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1", Status: models.CandidateStatusPending},
	}}
	svc := newPaymentService(refs, candidates)

	ref, err := svc.IssueReference(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, ref.Amount)
	assert.Equal(t, models.ReferenceStatusPending, ref.Status)
	assert.Equal(t, paymentNow.Add(48*time.Hour), ref.ExpiresAt)
	assert.Len(t, ref.Code, 12)
}

func TestIssueReferenceDoublesForTwoChoices(t *testing.T) {
	second := "course-2"
	refs := &mockReferenceRepo{}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1", SecondChoiceCourseID: &second},
	}}
	svc := newPaymentService(refs, candidates)

	ref, err := svc.IssueReference(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, ref.Amount)
}

func TestIssueReferenceReturnsUnexpiredPending(t *testing.T) {
	existing := models.PaymentReference{
		ID:          "ref-1",
		CandidateID: "cand-1",
		Status:      models.ReferenceStatusPending,
		IssuedAt:    paymentNow.Add(-time.Hour),
		ExpiresAt:   paymentNow.Add(47 * time.Hour),
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {existing}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	ref, err := svc.IssueReference(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", ref.ID)
	assert.Empty(t, refs.created)
}

func TestIssueReferenceReplacesExpired(t *testing.T) {
	expired := models.PaymentReference{
		ID:          "ref-1",
		CandidateID: "cand-1",
		Status:      models.ReferenceStatusPending,
		IssuedAt:    paymentNow.Add(-72 * time.Hour),
		ExpiresAt:   paymentNow.Add(-24 * time.Hour),
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {expired}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	ref, err := svc.IssueReference(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.NotEqual(t, "ref-1", ref.ID)
	require.Len(t, refs.created, 1)
}

func TestIssueReferenceEnforcesCap(t *testing.T) {
	old := func(id string, age time.Duration) models.PaymentReference {
		return models.PaymentReference{
			ID:          id,
			CandidateID: "cand-1",
			Status:      models.ReferenceStatusPending,
			IssuedAt:    paymentNow.Add(-age),
			ExpiresAt:   paymentNow.Add(48*time.Hour - age),
		}
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{
		"cand-1": {old("ref-1", 100 * time.Hour), old("ref-2", 90 * time.Hour)},
	}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	_, err := svc.IssueReference(context.Background(), "cand-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReferenceLimitExceeded.Code, appErrors.FromError(err).Code)
}

func TestIssueReferenceBlocksWhenAlreadyPaid(t *testing.T) {
	paidAt := paymentNow.Add(-time.Hour)
	paid := models.PaymentReference{
		ID:          "ref-1",
		CandidateID: "cand-1",
		Status:      models.ReferenceStatusPaid,
		PaidAt:      &paidAt,
		ExpiresAt:   paymentNow.Add(time.Hour),
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {paid}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	_, err := svc.IssueReference(context.Background(), "cand-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyPaid.Code, appErrors.FromError(err).Code)
}

func TestMarkPaidSettlesReference(t *testing.T) {
	pending := models.PaymentReference{
		ID:          "ref-1",
		CandidateID: "cand-1",
		Status:      models.ReferenceStatusPending,
		ExpiresAt:   paymentNow.Add(time.Hour),
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {pending}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1", Status: models.CandidateStatusPending},
	}}
	svc := newPaymentService(refs, candidates)

	ref, err := svc.MarkPaid(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReferenceStatusPaid, ref.Status)
	require.NotNil(t, ref.PaidAt)
	assert.Equal(t, []string{"ref-1"}, refs.paid)
}

func TestMarkPaidRejectsDoubleSettlement(t *testing.T) {
	paidAt := paymentNow.Add(-time.Hour)
	paid := models.PaymentReference{
		ID:          "ref-1",
		CandidateID: "cand-1",
		Status:      models.ReferenceStatusPaid,
		PaidAt:      &paidAt,
	}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {paid}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	_, err := svc.MarkPaid(context.Background(), "ref-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyPaid.Code, appErrors.FromError(err).Code)
	assert.Empty(t, refs.paid)
}

func TestPaymentStatusReflectsSettlement(t *testing.T) {
	paid := models.PaymentReference{ID: "ref-1", CandidateID: "cand-1", Status: models.ReferenceStatusPaid}
	refs := &mockReferenceRepo{refs: map[string][]models.PaymentReference{"cand-1": {paid}}}
	candidates := &mockCandidateRepo{candidates: map[string]models.Candidate{
		"cand-1": {ID: "cand-1", TermID: "term-1"},
		"cand-2": {ID: "cand-2", TermID: "term-1"},
	}}
	svc := newPaymentService(refs, candidates)

	settled, err := svc.PaymentStatus(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = svc.PaymentStatus(context.Background(), "cand-2")
	require.NoError(t, err)
	assert.False(t, settled)

	_, err = svc.PaymentStatus(context.Background(), "cand-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
