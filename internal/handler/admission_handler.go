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

// AdmissionHandler exposes candidate registration and listing endpoints.
type AdmissionHandler struct {
	service *service.AdmissionService
}

// NewAdmissionHandler constructs an admission handler.
func NewAdmissionHandler(svc *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{service: svc}
}

// List godoc
// @Summary List candidates
// @Tags Admissions
// @Produce json
// @Param termId query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Param search query string false "Search by name or admission number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.CandidateFilter
	filter.TermID = c.Query("termId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.CandidateStatus(status)
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	candidates, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, pagination)
}

// Get godoc
// @Summary Get candidate by ID
// @Tags Admissions
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	candidate, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

type reviewCandidateRequest struct {
	Status models.CandidateStatus `json:"status" binding:"required"`
}

// Review godoc
// @Summary Review a candidate's application
// @Description Moves the candidate through the document-verification statuses
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body reviewCandidateRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id}/review [patch]
func (h *AdmissionHandler) Review(c *gin.Context) {
	var req reviewCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.service.Review(c.Request.Context(), c.Param("id"), req.Status, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// Register godoc
// @Summary Register a candidate
// @Description Creates a candidate in the active term and assigns its admission number
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.RegisterCandidateRequest true "Candidate payload"
// @Success 201 {object} response.Envelope
// @Router /admissions/candidates [post]
func (h *AdmissionHandler) Register(c *gin.Context) {
	var req service.RegisterCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, candidate)
}
