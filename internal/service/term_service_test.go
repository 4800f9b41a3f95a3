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

type mockTermRepo struct {
	terms     map[string]models.Term
	count     int
	owned     map[string]int
	created   *models.Term
	activated []string
	closed    []string
	deleted   []string
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	var out []models.Term
	for _, t := range m.terms {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) FindActive(ctx context.Context) (*models.Term, error) {
	for _, t := range m.terms {
		if t.Status == models.TermStatusActive {
			term := t
			return &term, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, t := range m.terms {
		if t.Name == name && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTermRepo) CountAll(ctx context.Context) (int, error) {
	if m.count > 0 {
		return m.count, nil
	}
	return len(m.terms), nil
}

func (m *mockTermRepo) CountOwned(ctx context.Context, id string) (int, error) {
	return m.owned[id], nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	if term.ID == "" {
		term.ID = "term-new"
	}
	m.terms[term.ID] = *term
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	delete(m.terms, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTermRepo) Activate(ctx context.Context, id string) error {
	for key, t := range m.terms {
		if key == id {
			t.Status = models.TermStatusActive
			t.IsActive = true
		} else if t.Status == models.TermStatusActive {
			t.Status = models.TermStatusClosed
			t.IsActive = false
		}
		m.terms[key] = t
	}
	m.activated = append(m.activated, id)
	return nil
}

func (m *mockTermRepo) Close(ctx context.Context, id string) error {
	t := m.terms[id]
	t.Status = models.TermStatusClosed
	t.IsActive = false
	m.terms[id] = t
	m.closed = append(m.closed, id)
	return nil
}

func newTermService(repo *mockTermRepo) *TermService {
	return NewTermService(repo, nil, NewAuditService(nil, nil), nil, nil)
}

func termDates() (time.Time, time.Time) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 10, 0)
}

func TestTermCreateFirstStartsActive(t *testing.T) {
	repo := &mockTermRepo{}
	svc := newTermService(repo)
	start, end := termDates()

	term, err := svc.Create(context.Background(), CreateTermRequest{Name: "2026/2027", StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
}

func TestTermCreateLaterStartsPlanned(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", Name: "2025/2026", Status: models.TermStatusActive},
	}}
	svc := newTermService(repo)
	start, end := termDates()

	term, err := svc.Create(context.Background(), CreateTermRequest{Name: "2026/2027", StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusPlanned, term.Status)
}

func TestTermCreateRejectsDuplicateName(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", Name: "2026/2027", Status: models.TermStatusActive},
	}}
	svc := newTermService(repo)
	start, end := termDates()

	_, err := svc.Create(context.Background(), CreateTermRequest{Name: "2026/2027", StartDate: start, EndDate: end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTermCreateRejectsInvertedDates(t *testing.T) {
	svc := newTermService(&mockTermRepo{})
	start, end := termDates()

	_, err := svc.Create(context.Background(), CreateTermRequest{Name: "2026/2027", StartDate: end, EndDate: start})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermActivateClosesPredecessor(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"old": {ID: "old", Name: "2025/2026", Status: models.TermStatusActive},
		"new": {ID: "new", Name: "2026/2027", Status: models.TermStatusPlanned},
	}}
	svc := newTermService(repo)

	term, err := svc.Activate(context.Background(), "new", "admin", models.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
	assert.True(t, term.IsActive)
	assert.Equal(t, []string{"new"}, repo.activated)
	assert.Equal(t, models.TermStatusClosed, repo.terms["old"].Status)
}

func TestTermActivateAlreadyActiveIsNoop(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", Status: models.TermStatusActive},
	}}
	svc := newTermService(repo)

	term, err := svc.Activate(context.Background(), "t1", "admin", models.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
	assert.Empty(t, repo.activated)
}

func TestTermActivateClosedRequiresReopenCapability(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", Status: models.TermStatusClosed},
	}}
	svc := newTermService(repo)

	_, err := svc.Activate(context.Background(), "t1", "sec", models.Capabilities{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	term, err := svc.Activate(context.Background(), "t1", "dir", models.Capabilities{ReopenTerm: true})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
}

func TestTermActivateRejectsSuspended(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", Status: models.TermStatusSuspended},
	}}
	svc := newTermService(repo)

	_, err := svc.Activate(context.Background(), "t1", "dir", models.Capabilities{ReopenTerm: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.activated)
}

func TestTermCloseRequiresActive(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"active":  {ID: "active", Status: models.TermStatusActive},
		"planned": {ID: "planned", Status: models.TermStatusPlanned},
	}}
	svc := newTermService(repo)

	_, err := svc.Close(context.Background(), "planned", "dir")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	term, err := svc.Close(context.Background(), "active", "dir")
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusClosed, term.Status)
	assert.False(t, term.IsActive)
}

func TestTermReopenOnlyClosed(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"closed":  {ID: "closed", Status: models.TermStatusClosed},
		"planned": {ID: "planned", Status: models.TermStatusPlanned},
	}}
	svc := newTermService(repo)

	_, err := svc.Reopen(context.Background(), "planned", "dir", models.Capabilities{ReopenTerm: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	term, err := svc.Reopen(context.Background(), "closed", "dir", models.Capabilities{ReopenTerm: true})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
}

func TestTermDeleteRejectsActiveAndOwned(t *testing.T) {
	repo := &mockTermRepo{
		terms: map[string]models.Term{
			"active": {ID: "active", Status: models.TermStatusActive},
			"owned":  {ID: "owned", Status: models.TermStatusClosed},
			"empty":  {ID: "empty", Status: models.TermStatusPlanned},
		},
		owned: map[string]int{"owned": 12},
	}
	svc := newTermService(repo)

	err := svc.Delete(context.Background(), "active", "dir")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "owned", "dir")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)

	err = svc.Delete(context.Background(), "empty", "dir")
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, repo.deleted)
}
