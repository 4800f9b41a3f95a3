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

type matriculator interface {
	Matriculate(ctx context.Context, params repository.MatriculationParams) (*repository.MatriculationResult, error)
}

type approvedCandidateReader interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
}

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	SwapSections(ctx context.Context, a, b *models.Enrollment) error
	CountPriorByStudent(ctx context.Context, studentID string) (int, error)
}

type studentReader interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type waitlistRepository interface {
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	CallNext(ctx context.Context) (*models.WaitlistEntry, error)
}

// DirectMatriculationRequest enrolls a student without an admission pipeline
// run: transfers, returning students and late walk-ins. Either the identity
// fields or StudentID must be supplied.
type DirectMatriculationRequest struct {
	StudentID      string `json:"student_id"`
	FullName       string `json:"full_name"`
	Gender         string `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate      string `json:"birth_date"`
	DocumentNumber string `json:"document_number"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	GuardianName   string `json:"guardian_name"`
	GuardianPhone  string `json:"guardian_phone"`
	SectionID      string `json:"section_id" validate:"required,uuid"`
	CandidateID    string `json:"candidate_id" validate:"omitempty,uuid"`
}

// MatriculationService converts approved candidates into enrolled students
// and manages the enrollment-side operations that follow: section swaps and
// the capacity waitlist.
type MatriculationService struct {
	uow         matriculator
	candidates  approvedCandidateReader
	sections    sectionReader
	enrollments enrollmentRepository
	students    studentReader
	waitlist    waitlistRepository
	guard       TermGuard
	audit       *AuditService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMatriculationService constructs a MatriculationService.
func NewMatriculationService(uow matriculator, candidates approvedCandidateReader, sections sectionReader, enrollments enrollmentRepository, students studentReader, waitlist waitlistRepository, guard TermGuard, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *MatriculationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatriculationService{uow: uow, candidates: candidates, sections: sections, enrollments: enrollments, students: students, waitlist: waitlist, guard: guard, audit: audit, validator: validate, logger: logger}
}

// Matriculate enrolls an approved candidate into a class section. The
// operation is idempotent: repeating it resolves the same student and
// enrollment.
func (s *MatriculationService) Matriculate(ctx context.Context, candidateID, sectionID, actorID string) (*repository.MatriculationResult, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	if candidate.Status != models.CandidateStatusApproved && candidate.Status != models.CandidateStatusEnrolled {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidState, "only approved candidates can be matriculated", map[string]interface{}{
			"candidate_id": candidate.ID,
			"status":       candidate.Status,
		})
	}

	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.IsMutable(ctx, section.TermID); err != nil {
		return nil, err
	}

	params := repository.MatriculationParams{
		Student: models.Student{
			FullName:       candidate.FullName,
			Gender:         candidate.Gender,
			BirthDate:      candidate.BirthDate,
			DocumentNumber: candidate.DocumentNumber,
			Email:          candidate.Email,
			Phone:          candidate.Phone,
		},
		GuardianName:  candidate.GuardianName,
		GuardianPhone: candidate.GuardianPhone,
		SectionID:     section.ID,
		TermID:        section.TermID,
		CandidateID:   candidate.ID,
	}

	result, err := s.uow.Matriculate(ctx, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "matriculation failed")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionMatriculate, ActorID: actorID, Resource: "enrollment", ResourceID: result.Enrollment.ID, After: result})
	return result, nil
}

// MatriculateDirect enrolls a student outside the admission pipeline. A
// document number is required unless it can be inherited from a linked
// candidate or the student already holds prior enrollments.
func (s *MatriculationService) MatriculateDirect(ctx context.Context, req DirectMatriculationRequest, actorID string) (*repository.MatriculationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matriculation payload")
	}

	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.IsMutable(ctx, section.TermID); err != nil {
		return nil, err
	}

	identity := models.Student{
		FullName:       req.FullName,
		Gender:         req.Gender,
		DocumentNumber: req.DocumentNumber,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
	}
	if req.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be YYYY-MM-DD")
		}
		identity.BirthDate = birth
	}

	if req.StudentID != "" {
		student, err := s.students.FindByID(ctx, req.StudentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		identity = *student
	}

	if identity.DocumentNumber == "" && req.CandidateID != "" {
		candidate, err := s.candidates.FindByID(ctx, req.CandidateID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
		}
		identity.DocumentNumber = candidate.DocumentNumber
	}
	if identity.DocumentNumber == "" {
		waived := false
		if req.StudentID != "" {
			prior, err := s.enrollments.CountPriorByStudent(ctx, req.StudentID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count prior enrollments")
			}
			waived = prior > 0
		}
		if !waived {
			return nil, appErrors.Clone(appErrors.ErrValidation, "document_number is required for first-time enrollment")
		}
	}
	if identity.FullName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "full_name is required")
	}

	params := repository.MatriculationParams{
		Student:       identity,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		SectionID:     section.ID,
		TermID:        section.TermID,
		CandidateID:   req.CandidateID,
	}

	result, err := s.uow.Matriculate(ctx, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "matriculation failed")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionMatriculate, ActorID: actorID, Resource: "enrollment", ResourceID: result.Enrollment.ID, After: result})
	return result, nil
}

// ListStudents returns students matching the filter.
func (s *MatriculationService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetStudent loads one student.
func (s *MatriculationService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ListEnrollments returns enrollments with student/section/term context.
func (s *MatriculationService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SwapSections exchanges the class sections of two enrollments. Both
// enrollments must sit in mutable terms and currently hold different,
// non-empty sections.
func (s *MatriculationService) SwapSections(ctx context.Context, enrollmentAID, enrollmentBID, actorID string) error {
	if enrollmentAID == enrollmentBID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot swap an enrollment with itself")
	}

	a, err := s.loadEnrollment(ctx, enrollmentAID)
	if err != nil {
		return err
	}
	b, err := s.loadEnrollment(ctx, enrollmentBID)
	if err != nil {
		return err
	}
	if a.SectionID == nil || b.SectionID == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "both enrollments must be assigned to a section")
	}
	if *a.SectionID == *b.SectionID {
		return appErrors.Clone(appErrors.ErrValidation, "enrollments already share the same section")
	}

	if err := s.guard.IsMutable(ctx, a.TermID); err != nil {
		return err
	}
	if b.TermID != a.TermID {
		if err := s.guard.IsMutable(ctx, b.TermID); err != nil {
			return err
		}
	}

	if err := s.enrollments.SwapSections(ctx, a, b); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to swap sections")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionSectionSwap, ActorID: actorID, Resource: "enrollment", ResourceID: a.ID, After: map[string]interface{}{
		"enrollment_a": a.ID,
		"enrollment_b": b.ID,
	}})
	return nil
}

// AddToWaitlist queues a candidate for a seat once capacity frees up.
func (s *MatriculationService) AddToWaitlist(ctx context.Context, candidateID string, priority int) (*models.WaitlistEntry, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	entry := &models.WaitlistEntry{
		CandidateID: candidate.ID,
		Priority:    priority,
		Status:      models.WaitlistStatusWaiting,
	}
	if err := s.waitlist.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create waitlist entry")
	}
	return entry, nil
}

// CallNext pops the highest-priority waiting entry and marks it CALLED.
func (s *MatriculationService) CallNext(ctx context.Context, actorID string) (*models.WaitlistEntry, error) {
	entry, err := s.waitlist.CallNext(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist is empty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to call next waitlisted candidate")
	}

	s.audit.Record(ctx, AuditEntry{Action: models.AuditActionWaitlistCall, ActorID: actorID, Resource: "waitlist_entry", ResourceID: entry.ID, After: entry})
	return entry, nil
}

func (s *MatriculationService) loadSection(ctx context.Context, id string) (*models.ClassSection, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}
	return section, nil
}

func (s *MatriculationService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}
