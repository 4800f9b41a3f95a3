package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/siga-api/internal/service"
	"github.com/edusuite/siga-api/pkg/response"
)

// PaymentHandler exposes payment-reference endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// ListReferences godoc
// @Summary List a candidate's payment references
// @Tags Payments
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id}/payment-references [get]
func (h *PaymentHandler) ListReferences(c *gin.Context) {
	refs, err := h.service.ListReferences(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refs, nil)
}

// PaymentStatus godoc
// @Summary Check whether a candidate's admission fee is settled
// @Tags Payments
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/candidates/{id}/payment-status [get]
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	paid, err := h.service.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"paid": paid}, nil)
}

// IssueReference godoc
// @Summary Issue a payment reference
// @Description Returns the still-valid pending reference when one exists instead of minting a new one
// @Tags Payments
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 201 {object} response.Envelope
// @Router /admissions/candidates/{id}/payment-references [post]
func (h *PaymentHandler) IssueReference(c *gin.Context) {
	ref, err := h.service.IssueReference(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ref)
}

// MarkPaid godoc
// @Summary Confirm payment of a reference
// @Description Settles the reference, flips the candidate to PAID and books a placeholder exam slot
// @Tags Payments
// @Produce json
// @Param id path string true "Reference ID"
// @Success 200 {object} response.Envelope
// @Router /payment-references/{id}/pay [post]
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	ref, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ref, nil)
}
