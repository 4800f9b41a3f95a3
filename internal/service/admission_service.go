package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/repository"
	"github.com/edusuite/siga-api/pkg/config"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type candidateRepository interface {
	List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, int, error)
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	MaxSequenceForYear(ctx context.Context, year int) (int, error)
	Create(ctx context.Context, candidate *models.Candidate) error
	UpdateStatus(ctx context.Context, id string, status models.CandidateStatus) error
}

// RegisterCandidateRequest is the public registration payload.
type RegisterCandidateRequest struct {
	FullName             string    `json:"full_name" validate:"required"`
	Gender               string    `json:"gender" validate:"required,oneof=M F"`
	BirthDate            time.Time `json:"birth_date" validate:"required"`
	DocumentNumber       string    `json:"document_number" validate:"required"`
	Email                string    `json:"email" validate:"required,email"`
	Phone                string    `json:"phone" validate:"required"`
	GuardianName         string    `json:"guardian_name" validate:"required"`
	GuardianPhone        string    `json:"guardian_phone" validate:"required"`
	PreviousSchool       string    `json:"previous_school"`
	FirstChoiceCourseID  string    `json:"first_choice_course_id" validate:"required"`
	SecondChoiceCourseID *string   `json:"second_choice_course_id"`
}

// AdmissionService owns candidate records and their pipeline transitions.
type AdmissionService struct {
	repo      candidateRepository
	guard     TermGuard
	audit     *AuditService
	cfg       config.AdmissionConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(repo candidateRepository, guard TermGuard, audit *AuditService, cfg config.AdmissionConfig, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NumberMaxAttempts <= 0 {
		cfg.NumberMaxAttempts = 5
	}
	return &AdmissionService{repo: repo, guard: guard, audit: audit, cfg: cfg, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns candidates with pagination metadata.
func (s *AdmissionService) List(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, *models.Pagination, error) {
	candidates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return candidates, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a candidate by ID.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Candidate, error) {
	candidate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	return candidate, nil
}

// Register creates a candidate in the active term. The admission number is
// assigned optimistically: read the year's max sequence, try the next one and
// retry on unique-violation, bounded so contention cannot loop forever.
func (s *AdmissionService) Register(ctx context.Context, req RegisterCandidateRequest) (*models.Candidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if !s.cfg.RegistrationOpen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "public registration is closed")
	}

	term, err := s.guard.ActiveTerm(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !term.AdmissionOpen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "term is not accepting registrations")
	}
	windowEnd := s.cfg.WindowEnd
	if term.AdmissionClose != nil {
		windowEnd = *term.AdmissionClose
	}
	if !windowEnd.IsZero() && now.After(windowEnd) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "admission window has ended")
	}

	candidate := &models.Candidate{
		FullName:             req.FullName,
		Gender:               req.Gender,
		BirthDate:            req.BirthDate,
		DocumentNumber:       req.DocumentNumber,
		Email:                req.Email,
		Phone:                req.Phone,
		GuardianName:         req.GuardianName,
		GuardianPhone:        req.GuardianPhone,
		PreviousSchool:       req.PreviousSchool,
		FirstChoiceCourseID:  req.FirstChoiceCourseID,
		SecondChoiceCourseID: req.SecondChoiceCourseID,
		TermID:               term.ID,
		Status:               models.CandidateStatusPending,
	}

	year := now.Year()
	for attempt := 0; attempt < s.cfg.NumberMaxAttempts; attempt++ {
		seq, err := s.repo.MaxSequenceForYear(ctx, year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute admission number")
		}
		candidate.ID = ""
		candidate.AdmissionNumber = fmt.Sprintf("INS%d%04d", year, seq+1)

		err = s.repo.Create(ctx, candidate)
		if err == nil {
			s.audit.Record(ctx, AuditEntry{Action: models.AuditActionCandidateRegister, Resource: "candidate", ResourceID: candidate.ID, After: candidate})
			return candidate, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create candidate")
		}
		s.logger.Debug("admission number collision, retrying", zap.String("number", candidate.AdmissionNumber), zap.Int("attempt", attempt+1))
	}

	return nil, appErrors.Clone(appErrors.ErrConflict, "admission number contention, retry registration")
}

// reviewTransitions lists the statuses a secretary may set per current status.
var reviewTransitions = map[models.CandidateStatus][]models.CandidateStatus{
	models.CandidateStatusPending:     {models.CandidateStatusUnderReview, models.CandidateStatusConfirmed, models.CandidateStatusRejected},
	models.CandidateStatusUnderReview: {models.CandidateStatusConfirmed, models.CandidateStatusRejected},
}

// Review moves a candidate through the document-verification stage of the
// pipeline. Only pre-payment statuses are reachable here; payment, scheduling
// and grading own the later transitions.
func (s *AdmissionService) Review(ctx context.Context, id string, status models.CandidateStatus, actorID string) (*models.Candidate, error) {
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureMutable(ctx, candidate); err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range reviewTransitions[candidate.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "review transition not allowed", map[string]interface{}{
			"candidate_id": candidate.ID,
			"from":         candidate.Status,
			"to":           status,
		})
	}

	before := *candidate
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update candidate status")
	}
	candidate.Status = status

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionCandidateReview, ActorID: actorID, Resource: "candidate", ResourceID: candidate.ID, Before: before, After: candidate})
	return candidate, nil
}

// EnsureMutable verifies the candidate's owning term still accepts writes.
func (s *AdmissionService) EnsureMutable(ctx context.Context, candidate *models.Candidate) error {
	return s.guard.IsMutable(ctx, candidate.TermID)
}
