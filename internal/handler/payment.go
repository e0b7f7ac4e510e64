package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RefundRequest is the HTTP request body for a refund.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ListMyPayments handles GET /v1/me/payments
func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	payments, err := h.paymentService.ListUserPayments(c.Request.Context(), actorOf(c).UserID, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"payments": mapSlice(payments, toPaymentResponse)})
}

// RefundPayment handles POST /v1/payments/:id/refund (operators only)
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	var req RefundRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	original, err := h.paymentService.GetPayment(ctx, c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	refund, err := h.paymentService.Refund(ctx, original.UserID, original.ID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toPaymentResponse(refund))
}
