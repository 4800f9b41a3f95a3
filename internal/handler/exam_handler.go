package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/siga-api/internal/service"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
	"github.com/edusuite/siga-api/pkg/response"
)

// ExamHandler exposes admission-exam endpoints.
type ExamHandler struct {
	service *service.ExamService
}

// NewExamHandler constructs an exam handler.
func NewExamHandler(svc *service.ExamService) *ExamHandler {
	return &ExamHandler{service: svc}
}

type gradeExamRequest struct {
	Score float64 `json:"score" binding:"required"`
}

// Distribute godoc
// @Summary Distribute paid candidates over rooms and time slots
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.DistributeRequest true "Distribution parameters"
// @Success 200 {object} response.Envelope
// @Router /admissions/exams/distribute [post]
func (h *ExamHandler) Distribute(c *gin.Context) {
	var req service.DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Distribute(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Grade godoc
// @Summary Record an exam score
// @Description Settles the admission decision against the passing threshold
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body gradeExamRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id}/grade [post]
func (h *ExamHandler) Grade(c *gin.Context) {
	var req gradeExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.service.Grade(c.Request.Context(), c.Param("id"), req.Score, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}
