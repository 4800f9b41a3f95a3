package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/repository"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

// stubTermGuard satisfies TermGuard for service tests.
type stubTermGuard struct {
	term       *models.Term
	mutableErr error
	activeErr  error
}

func (g *stubTermGuard) IsMutable(ctx context.Context, termID string) error {
	return g.mutableErr
}

func (g *stubTermGuard) ActiveTerm(ctx context.Context) (*models.Term, error) {
	if g.activeErr != nil {
		return nil, g.activeErr
	}
	return g.term, nil
}

type mockGuardTermReader struct {
	terms  map[string]models.Term
	active *models.Term
}

func (m *mockGuardTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGuardTermReader) FindActive(ctx context.Context) (*models.Term, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func TestTermGuardIsMutable(t *testing.T) {
	reader := &mockGuardTermReader{terms: map[string]models.Term{
		"active": {ID: "active", Status: models.TermStatusActive},
		"closed": {ID: "closed", Status: models.TermStatusClosed},
	}}
	guard := NewTermGuard(reader, nil, 0, nil)

	require.NoError(t, guard.IsMutable(context.Background(), "active"))

	err := guard.IsMutable(context.Background(), "closed")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTermClosed.Code, appErr.Code)

	err = guard.IsMutable(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermGuardActiveTerm(t *testing.T) {
	reader := &mockGuardTermReader{}
	guard := NewTermGuard(reader, nil, 0, nil)

	_, err := guard.ActiveTerm(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	reader.active = &models.Term{ID: "t1", Status: models.TermStatusActive}
	term, err := guard.ActiveTerm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", term.ID)
}

func TestTermGuardActiveTermRecordsCacheMetrics(t *testing.T) {
	reader := &mockGuardTermReader{active: &models.Term{ID: "t1", Status: models.TermStatusActive}}
	metrics := NewMetricsService()
	// A cache without a client misses every lookup.
	guard := NewTermGuard(reader, repository.NewCacheRepository(nil, nil), 0, metrics)

	_, err := guard.ActiveTerm(context.Background())
	require.NoError(t, err)
	_, err = guard.ActiveTerm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.cacheHitRatio))
}

func TestRecordCacheOperationUpdatesHitRatio(t *testing.T) {
	metrics := NewMetricsService()

	metrics.RecordCacheOperation(true)
	metrics.RecordCacheOperation(true)
	metrics.RecordCacheOperation(true)
	metrics.RecordCacheOperation(false)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.InDelta(t, 0.75, testutil.ToFloat64(metrics.cacheHitRatio), 1e-9)
}
