package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusuite/siga-api/internal/models"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	CodeParts(ctx context.Context, roomID, courseID, gradeLevelID, shiftID string) (*models.SectionCodeParts, error)
	Create(ctx context.Context, section *models.ClassSection) error
	Update(ctx context.Context, section *models.ClassSection) error
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// CreateSectionRequest is the payload to open a class section.
type CreateSectionRequest struct {
	RoomID       string `json:"room_id" validate:"required,uuid"`
	CourseID     string `json:"course_id" validate:"required,uuid"`
	GradeLevelID string `json:"grade_level_id" validate:"required,uuid"`
	ShiftID      string `json:"shift_id" validate:"required,uuid"`
	Capacity     int    `json:"capacity" validate:"required,min=1"`
}

// UpdateSectionRequest carries optional section changes. Changing any code
// part recomputes the code.
type UpdateSectionRequest struct {
	RoomID       *string `json:"room_id" validate:"omitempty,uuid"`
	CourseID     *string `json:"course_id" validate:"omitempty,uuid"`
	GradeLevelID *string `json:"grade_level_id" validate:"omitempty,uuid"`
	ShiftID      *string `json:"shift_id" validate:"omitempty,uuid"`
	Capacity     *int    `json:"capacity" validate:"omitempty,min=1"`
}

// SectionService manages class sections of the active term. Section codes are
// derived, never supplied, and capacity can never exceed the room's.
type SectionService struct {
	repo      sectionRepository
	rooms     roomReader
	guard     TermGuard
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs a SectionService.
func NewSectionService(repo sectionRepository, rooms roomReader, guard TermGuard, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, rooms: rooms, guard: guard, audit: audit, validator: validate, logger: logger}
}

// List returns sections with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one section.
func (s *SectionService) Get(ctx context.Context, id string) (*models.ClassSection, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}
	return section, nil
}

// Create opens a class section in the active term.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest, actorID string) (*models.ClassSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	term, err := s.guard.ActiveTerm(ctx)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.FindByID(ctx, req.RoomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if req.Capacity > room.Capacity {
		return nil, appErrors.WithDetails(appErrors.ErrCapacityExceeded, "section capacity exceeds room capacity", map[string]interface{}{
			"room_capacity":      room.Capacity,
			"requested_capacity": req.Capacity,
		})
	}

	code, err := s.deriveCode(ctx, req.RoomID, req.CourseID, req.GradeLevelID, req.ShiftID, term)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("section %s already exists", code))
	}

	section := &models.ClassSection{
		Code:         code,
		RoomID:       req.RoomID,
		CourseID:     req.CourseID,
		GradeLevelID: req.GradeLevelID,
		ShiftID:      req.ShiftID,
		Capacity:     req.Capacity,
		Status:       models.SectionStatusActive,
		TermID:       term.ID,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionSectionCreate, ActorID: actorID, Resource: "class_section", ResourceID: section.ID, After: section})
	return section, nil
}

// Update modifies a section; code parts changes recompute the code.
func (s *SectionService) Update(ctx context.Context, id string, req UpdateSectionRequest, actorID string) (*models.ClassSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.IsMutable(ctx, section.TermID); err != nil {
		return nil, err
	}
	if section.Status != models.SectionStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "concluded sections cannot be modified")
	}
	before := *section

	recompute := false
	if req.RoomID != nil && *req.RoomID != section.RoomID {
		section.RoomID = *req.RoomID
		recompute = true
	}
	if req.CourseID != nil && *req.CourseID != section.CourseID {
		section.CourseID = *req.CourseID
		recompute = true
	}
	if req.GradeLevelID != nil && *req.GradeLevelID != section.GradeLevelID {
		section.GradeLevelID = *req.GradeLevelID
		recompute = true
	}
	if req.ShiftID != nil && *req.ShiftID != section.ShiftID {
		section.ShiftID = *req.ShiftID
		recompute = true
	}
	if req.Capacity != nil {
		section.Capacity = *req.Capacity
	}

	room, err := s.rooms.FindByID(ctx, section.RoomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if section.Capacity > room.Capacity {
		return nil, appErrors.WithDetails(appErrors.ErrCapacityExceeded, "section capacity exceeds room capacity", map[string]interface{}{
			"room_capacity":      room.Capacity,
			"requested_capacity": section.Capacity,
		})
	}

	if recompute {
		term, err := s.guard.ActiveTerm(ctx)
		if err != nil {
			return nil, err
		}
		code, err := s.deriveCode(ctx, section.RoomID, section.CourseID, section.GradeLevelID, section.ShiftID, term)
		if err != nil {
			return nil, err
		}
		exists, err := s.repo.ExistsByCode(ctx, code, section.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("section %s already exists", code))
		}
		section.Code = code
	}

	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionSectionUpdate, ActorID: actorID, Resource: "class_section", ResourceID: section.ID, Before: before, After: section})
	return section, nil
}

// deriveCode builds the section code from catalog parts, e.g. INF10M3-2026.
func (s *SectionService) deriveCode(ctx context.Context, roomID, courseID, gradeLevelID, shiftID string, term *models.Term) (string, error) {
	parts, err := s.repo.CodeParts(ctx, roomID, courseID, gradeLevelID, shiftID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "course, grade level, shift or room not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load code parts")
	}
	return fmt.Sprintf("%s%d%s%d-%d", parts.CourseCode, parts.GradeLevel, parts.ShiftCode, parts.RoomNumber, term.StartDate.Year()), nil
}
