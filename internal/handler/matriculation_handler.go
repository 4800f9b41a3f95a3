package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/service"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
	"github.com/edusuite/siga-api/pkg/response"
)

// MatriculationHandler exposes enrollment conversion endpoints.
type MatriculationHandler struct {
	service *service.MatriculationService
}

// NewMatriculationHandler constructs a matriculation handler.
func NewMatriculationHandler(svc *service.MatriculationService) *MatriculationHandler {
	return &MatriculationHandler{service: svc}
}

type matriculateRequest struct {
	SectionID string `json:"section_id" binding:"required"`
}

type swapSectionsRequest struct {
	EnrollmentAID string `json:"enrollment_a_id" binding:"required"`
	EnrollmentBID string `json:"enrollment_b_id" binding:"required"`
}

type waitlistRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
	Priority    int    `json:"priority"`
}

// ListStudents godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Name or document search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *MatriculationHandler) ListStudents(c *gin.Context) {
	filter := models.StudentFilter{
		Status: models.StudentStatus(c.Query("status")),
		Search: c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	students, pagination, err := h.service.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// GetStudent godoc
// @Summary Get student by ID
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *MatriculationHandler) GetStudent(c *gin.Context) {
	student, err := h.service.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ListEnrollments godoc
// @Summary List enrollments
// @Tags Matriculation
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param sectionId query string false "Filter by section"
// @Param termId query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *MatriculationHandler) ListEnrollments(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		SectionID: c.Query("sectionId"),
		TermID:    c.Query("termId"),
		Status:    models.EnrollmentStatus(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.service.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Matriculate godoc
// @Summary Matriculate an approved candidate
// @Description Converts the candidate into an enrolled student in a single unit of work
// @Tags Matriculation
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body matriculateRequest true "Target section"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id}/matriculate [post]
func (h *MatriculationHandler) Matriculate(c *gin.Context) {
	var req matriculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Matriculate(c.Request.Context(), c.Param("id"), req.SectionID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MatriculateDirect godoc
// @Summary Matriculate a student directly
// @Description Enrolls transfers and returning students without an admission pipeline run
// @Tags Matriculation
// @Accept json
// @Produce json
// @Param payload body service.DirectMatriculationRequest true "Matriculation payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/matriculate [post]
func (h *MatriculationHandler) MatriculateDirect(c *gin.Context) {
	var req service.DirectMatriculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.MatriculateDirect(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SwapSections godoc
// @Summary Swap the class sections of two enrollments
// @Tags Matriculation
// @Accept json
// @Produce json
// @Param payload body swapSectionsRequest true "Enrollment pair"
// @Success 204
// @Router /enrollments/swap [post]
func (h *MatriculationHandler) SwapSections(c *gin.Context) {
	var req swapSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.SwapSections(c.Request.Context(), req.EnrollmentAID, req.EnrollmentBID, actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddToWaitlist godoc
// @Summary Queue a candidate on the waitlist
// @Tags Matriculation
// @Accept json
// @Produce json
// @Param payload body waitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /admissions/waitlist [post]
func (h *MatriculationHandler) AddToWaitlist(c *gin.Context) {
	var req waitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.AddToWaitlist(c.Request.Context(), req.CandidateID, req.Priority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// CallNext godoc
// @Summary Call the next waitlisted candidate
// @Tags Matriculation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/waitlist/call-next [post]
func (h *MatriculationHandler) CallNext(c *gin.Context) {
	entry, err := h.service.CallNext(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
