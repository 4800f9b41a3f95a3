package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/repository"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

const activeTermCacheKey = "siga:term:active"

type guardTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
}

// TermGuard is the single pre-mutation check shared by every component that
// writes against a term-owned entity. A term is mutable only while ACTIVE.
type TermGuard interface {
	IsMutable(ctx context.Context, termID string) error
	ActiveTerm(ctx context.Context) (*models.Term, error)
}

type termGuard struct {
	terms    guardTermReader
	cache    *repository.CacheRepository
	cacheTTL time.Duration
	metrics  *MetricsService
}

// NewTermGuard constructs the shared mutability guard. The cache and metrics
// are optional; the cache only shortcuts the active-term lookup.
func NewTermGuard(terms guardTermReader, cache *repository.CacheRepository, cacheTTL time.Duration, metrics *MetricsService) TermGuard {
	return &termGuard{terms: terms, cache: cache, cacheTTL: cacheTTL, metrics: metrics}
}

// IsMutable fails with TERM_CLOSED unless the term is currently ACTIVE.
func (g *termGuard) IsMutable(ctx context.Context, termID string) error {
	term, err := g.terms.FindByID(ctx, termID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.Status != models.TermStatusActive {
		return appErrors.WithDetails(appErrors.ErrTermClosed, "", map[string]interface{}{
			"term_id": term.ID,
			"status":  term.Status,
		})
	}
	return nil
}

// ActiveTerm returns the currently active term, consulting the cache first.
func (g *termGuard) ActiveTerm(ctx context.Context) (*models.Term, error) {
	if g.cache != nil {
		var cached models.Term
		if err := g.cache.Get(ctx, activeTermCacheKey, &cached); err == nil {
			g.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		g.metrics.RecordCacheOperation(false)
	}

	term, err := g.terms.FindActive(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}

	if g.cache != nil {
		_ = g.cache.Set(ctx, activeTermCacheKey, term, g.cacheTTL)
	}
	return term, nil
}

// InvalidateActiveTerm drops the cached active term after a lifecycle change.
func InvalidateActiveTerm(ctx context.Context, cache *repository.CacheRepository) {
	if cache != nil {
		_ = cache.Delete(ctx, activeTermCacheKey)
	}
}
