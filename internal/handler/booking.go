package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rideshare/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBookingRequest is the HTTP request body for requesting seats.
type CreateBookingRequest struct {
	RideID        string `json:"ride_id"`
	Seats         int    `json:"seats"`
	PaymentMethod string `json:"payment_method,omitempty"` // CASH, CARD, WALLET
}

// ReasonRequest carries the optional reason of a reject or cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	method, err := service.ParsePaymentMethod(strings.ToUpper(req.PaymentMethod))
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		RideID:        req.RideID,
		PassengerID:   actorOf(c).UserID,
		Seats:         req.Seats,
		PaymentMethod: method,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListMyBookings handles GET /v1/me/bookings
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListPassengerBookings(c.Request.Context(), actorOf(c).UserID, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"bookings": mapSlice(bookings, toBookingResponse)})
}

// ListRideBookings handles GET /v1/rides/:id/bookings
func (h *BookingHandler) ListRideBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListRideBookings(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"bookings": mapSlice(bookings, toBookingResponse)})
}

// ApproveBooking handles POST /v1/bookings/:id/approve
func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	booking, err := h.bookingService.ApproveBooking(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req ReasonRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.RejectBooking(c.Request.Context(), c.Param("id"), actorOf(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req ReasonRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), actorOf(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	booking, err := h.bookingService.CompleteBooking(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// PayBooking handles POST /v1/bookings/:id/pay
func (h *BookingHandler) PayBooking(c *gin.Context) {
	payment, err := h.bookingService.PayBooking(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}
