package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/repository"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	CountAll(ctx context.Context) (int, error)
	CountOwned(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	Delete(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	Close(ctx context.Context, id string) error
}

// CreateTermRequest describes payload for creating academic terms.
type CreateTermRequest struct {
	Name           string     `json:"name" validate:"required"`
	StartDate      time.Time  `json:"start_date" validate:"required"`
	EndDate        time.Time  `json:"end_date" validate:"required"`
	AdmissionOpen  bool       `json:"admission_open"`
	AdmissionClose *time.Time `json:"admission_close"`
}

// UpdateTermRequest updates mutable descriptive fields on a term.
type UpdateTermRequest struct {
	Name           string     `json:"name" validate:"required"`
	StartDate      time.Time  `json:"start_date" validate:"required"`
	EndDate        time.Time  `json:"end_date" validate:"required"`
	AdmissionOpen  bool       `json:"admission_open"`
	AdmissionClose *time.Time `json:"admission_close"`
}

// TermService owns the academic-term lifecycle: at most one term is active,
// and every lifecycle flip runs its cascade atomically in the repository.
type TermService struct {
	repo      termRepository
	cache     *repository.CacheRepository
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, cache *repository.CacheRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return terms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetActive returns the single active term.
func (s *TermService) GetActive(ctx context.Context) (*models.Term, error) {
	term, err := s.repo.FindActive(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	return term, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Create adds a new term. The very first term ever created starts ACTIVE;
// later ones start PLANNED and go through Activate.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term name already in use")
	}

	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count terms")
	}

	status := models.TermStatusPlanned
	if count == 0 {
		status = models.TermStatusActive
	}

	term := &models.Term{
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         status,
		AdmissionOpen:  req.AdmissionOpen,
		AdmissionClose: req.AdmissionClose,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update modifies a term's descriptive fields.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term name already in use")
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	term.AdmissionOpen = req.AdmissionOpen
	term.AdmissionClose = req.AdmissionClose

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Delete removes a term that owns nothing. The active term and any term still
// referenced by sections or enrollments cannot be deleted.
func (s *TermService) Delete(ctx context.Context, id, actorID string) error {
	term, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if term.Status == models.TermStatusActive {
		return appErrors.Clone(appErrors.ErrInvalidState, "the active term cannot be deleted")
	}

	owned, err := s.repo.CountOwned(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count term references")
	}
	if owned > 0 {
		return appErrors.WithDetails(appErrors.ErrConflict, "term still owns sections or enrollments", map[string]interface{}{
			"term_id":    term.ID,
			"references": owned,
		})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionTermDelete, ActorID: actorID, Resource: "academic_term", ResourceID: term.ID, Before: term})
	return nil
}

// Activate makes the term the single active one, closing any predecessor with
// its cascade. A CLOSED term is a reopening and demands the reopen-term
// capability; SUSPENDED is reserved and never activated.
func (s *TermService) Activate(ctx context.Context, id, actorID string, caps models.Capabilities) (*models.Term, error) {
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch term.Status {
	case models.TermStatusActive:
		return term, nil
	case models.TermStatusClosed:
		if !caps.ReopenTerm {
			return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "reopening a closed term requires elevated privilege", map[string]interface{}{
				"term_id": term.ID,
				"status":  term.Status,
			})
		}
	case models.TermStatusSuspended:
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "suspended terms cannot be activated", map[string]interface{}{
			"term_id": term.ID,
			"status":  term.Status,
		})
	}

	before := *term
	if err := s.repo.Activate(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	InvalidateActiveTerm(ctx, s.cache)

	term.Status = models.TermStatusActive
	term.IsActive = true

	action := models.AuditActionTermActivate
	if before.Status == models.TermStatusClosed {
		action = models.AuditActionTermReopen
	}
	s.audit.Record(ctx, AuditEntry{Action: action, ActorID: actorID, Resource: "academic_term", ResourceID: term.ID, Before: before, After: term})

	return term, nil
}

// Close concludes the active term and cascades to everything it owns.
func (s *TermService) Close(ctx context.Context, id, actorID string) (*models.Term, error) {
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if term.Status != models.TermStatusActive {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "only an active term can be closed", map[string]interface{}{
			"term_id": term.ID,
			"status":  term.Status,
		})
	}

	before := *term
	if err := s.repo.Close(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close term")
	}
	InvalidateActiveTerm(ctx, s.cache)

	term.Status = models.TermStatusClosed
	term.IsActive = false
	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionTermClose, ActorID: actorID, Resource: "academic_term", ResourceID: term.ID, Before: before, After: term})

	return term, nil
}

// Reopen flips a closed term back to active, reversing its close cascade.
// The cascade is the same whether the term was closed explicitly or by a
// successor's activation.
func (s *TermService) Reopen(ctx context.Context, id, actorID string, caps models.Capabilities) (*models.Term, error) {
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if term.Status != models.TermStatusClosed {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "only a closed term can be reopened", map[string]interface{}{
			"term_id": term.ID,
			"status":  term.Status,
		})
	}
	return s.Activate(ctx, id, actorID, caps)
}
