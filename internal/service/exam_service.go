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

const distributeLockKey = "siga:exam:distribute"

type examRepository interface {
	FindByCandidate(ctx context.Context, candidateID string) (*models.AdmissionExam, error)
	Upsert(ctx context.Context, candidateID, roomID string, scheduledAt time.Time) error
	SetScore(ctx context.Context, candidateID string, score float64) error
}

type paidCandidateRepository interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListPaidByTerm(ctx context.Context, termID string, limit int) ([]models.Candidate, error)
	UpdateStatus(ctx context.Context, id string, status models.CandidateStatus) error
}

type roomLister interface {
	ListOrdered(ctx context.Context) ([]models.Room, error)
}

// DistributeRequest parameterizes a scheduling batch.
type DistributeRequest struct {
	StartDate    string `json:"start_date" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	RoomCapacity int    `json:"room_capacity"`
	Limit        int    `json:"limit"`
}

// DistributeResult summarizes one scheduling batch.
type DistributeResult struct {
	Scheduled int       `json:"scheduled"`
	FirstSlot time.Time `json:"first_slot"`
	LastSlot  time.Time `json:"last_slot"`
}

// ExamService allocates paid candidates to rooms and time slots and records
// grades. Distribution is deterministic: candidates in admission-number
// order, rooms in room-number order, each (time, room) pair filled to
// capacity before the cursor advances.
type ExamService struct {
	exams      examRepository
	candidates paidCandidateRepository
	rooms      roomLister
	guard      TermGuard
	cache      *repository.CacheRepository
	audit      *AuditService
	cfg        config.ExamConfig
	lockTTL    time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(exams examRepository, candidates paidCandidateRepository, rooms roomLister, guard TermGuard, cache *repository.CacheRepository, audit *AuditService, cfg config.ExamConfig, lockTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PassingScore <= 0 {
		cfg.PassingScore = 10
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 2 * time.Hour
	}
	if cfg.MorningStart == "" {
		cfg.MorningStart = "08:00"
	}
	if cfg.LunchStart == "" {
		cfg.LunchStart = "12:00"
	}
	if cfg.LunchEnd == "" {
		cfg.LunchEnd = "13:00"
	}
	if cfg.AfternoonEnd == "" {
		cfg.AfternoonEnd = "16:00"
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &ExamService{exams: exams, candidates: candidates, rooms: rooms, guard: guard, cache: cache, audit: audit, cfg: cfg, lockTTL: lockTTL, validator: validate, logger: logger}
}

// Distribute assigns every paid candidate of the active term an exam slot.
// Runs are mutually exclusive via an advisory lock: overlapping batches would
// double-book candidates.
func (s *ExamService) Distribute(ctx context.Context, req DistributeRequest, actorID string) (*DistributeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribute payload")
	}

	cursor, err := parseCursor(req.StartDate, req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD and start_time HH:MM")
	}

	if s.cache != nil {
		ok, err := s.cache.AcquireLock(ctx, distributeLockKey, s.lockTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire distribution lock")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another distribution run is in progress")
		}
		defer s.cache.ReleaseLock(ctx, distributeLockKey)
	}

	term, err := s.guard.ActiveTerm(ctx)
	if err != nil {
		return nil, err
	}

	queue, err := s.candidates.ListPaidByTerm(ctx, term.ID, req.Limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paid candidates")
	}
	if len(queue) == 0 {
		return &DistributeResult{}, nil
	}

	rooms, err := s.rooms.ListOrdered(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no rooms available for scheduling")
	}
	usable := false
	for _, room := range rooms {
		if room.Capacity > 0 {
			usable = true
			break
		}
	}
	if !usable {
		// Rooms come from seed data; zero capacities would stall the cursor.
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no room has positive capacity")
	}

	result := &DistributeResult{}
	next := 0 // queue cursor; only ever advances, so no candidate is placed twice
	for next < len(queue) {
		cursor = s.normalize(cursor)
		for _, room := range rooms {
			if next >= len(queue) {
				break
			}
			size := room.Capacity
			if req.RoomCapacity > 0 && req.RoomCapacity < size {
				size = req.RoomCapacity
			}
			if size <= 0 {
				continue
			}
			end := next + size
			if end > len(queue) {
				end = len(queue)
			}
			for _, candidate := range queue[next:end] {
				if err := s.exams.Upsert(ctx, candidate.ID, room.ID, cursor); err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book exam")
				}
				if err := s.candidates.UpdateStatus(ctx, candidate.ID, models.CandidateStatusScheduled); err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark candidate scheduled")
				}
			}
			if result.Scheduled == 0 {
				result.FirstSlot = cursor
			}
			result.LastSlot = cursor
			result.Scheduled += end - next
			next = end
		}
		cursor = cursor.Add(s.cfg.SlotStep)
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionExamDistribute, ActorID: actorID, Resource: "admission_exam", After: result})
	return result, nil
}

// Grade writes the candidate's exam score once and settles the admission
// decision against the passing threshold.
func (s *ExamService) Grade(ctx context.Context, candidateID string, score float64, actorID string) (*models.Candidate, error) {
	if score < 0 || score > 20 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 20")
	}

	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	if candidate.Status != models.CandidateStatusScheduled {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "candidate has no scheduled exam to grade", map[string]interface{}{
			"candidate_id": candidate.ID,
			"status":       candidate.Status,
		})
	}
	if err := s.guard.IsMutable(ctx, candidate.TermID); err != nil {
		return nil, err
	}

	exam, err := s.exams.FindByCandidate(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.Completed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "exam already graded")
	}

	if err := s.exams.SetScore(ctx, candidateID, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record score")
	}

	before := *candidate
	status := models.CandidateStatusNotAdmitted
	if score >= s.cfg.PassingScore {
		status = models.CandidateStatusApproved
	}
	if err := s.candidates.UpdateStatus(ctx, candidateID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update candidate status")
	}
	candidate.Status = status

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionExamGrade, ActorID: actorID, Resource: "candidate", ResourceID: candidate.ID, Before: before, After: candidate})
	return candidate, nil
}

// normalize snaps the cursor into the working-hours calendar: the lunch gap
// jumps to its end and anything at or past the afternoon close moves to the
// next morning.
func (s *ExamService) normalize(cursor time.Time) time.Time {
	day := cursor.Format("2006-01-02")
	lunchStart := mustClock(day, s.cfg.LunchStart, cursor.Location())
	lunchEnd := mustClock(day, s.cfg.LunchEnd, cursor.Location())
	afternoonEnd := mustClock(day, s.cfg.AfternoonEnd, cursor.Location())
	morningStart := mustClock(day, s.cfg.MorningStart, cursor.Location())

	if cursor.Before(morningStart) {
		return morningStart
	}
	if !cursor.Before(lunchStart) && cursor.Before(lunchEnd) {
		return lunchEnd
	}
	if !cursor.Before(afternoonEnd) {
		nextDay := cursor.AddDate(0, 0, 1).Format("2006-01-02")
		return mustClock(nextDay, s.cfg.MorningStart, cursor.Location())
	}
	return cursor
}

func parseCursor(date, clock string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s", date, clock), time.UTC)
}

func mustClock(date, clock string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s", date, clock), loc)
	if err != nil {
		t, _ = time.ParseInLocation("2006-01-02 15:04", date+" 08:00", loc)
	}
	return t
}
