package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/domain"
	"rideshare/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req service.CreateRideRequest
	if !bindJSON(c, &req) {
		return
	}
	req.DriverID = actorOf(c).UserID

	ride, err := h.rideService.CreateRide(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /v1/rides?status=ACTIVE&limit=20
func (h *RideHandler) ListRides(c *gin.Context) {
	status := domain.RideStatus(c.DefaultQuery("status", string(domain.RideStatusActive)))

	rides, err := h.rideService.ListRides(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": mapSlice(rides, toRideResponse)})
}

// ListMyRides handles GET /v1/me/rides
func (h *RideHandler) ListMyRides(c *gin.Context) {
	rides, err := h.rideService.ListDriverRides(c.Request.Context(), actorOf(c).UserID, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": mapSlice(rides, toRideResponse)})
}

// UpdateRide handles PATCH /v1/rides/:id
func (h *RideHandler) UpdateRide(c *gin.Context) {
	var req service.UpdateRideRequest
	if !bindJSON(c, &req) {
		return
	}

	ride, err := h.rideService.UpdateRide(c.Request.Context(), c.Param("id"), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// PublishRide handles POST /v1/rides/:id/publish
func (h *RideHandler) PublishRide(c *gin.Context) {
	h.lifecycle(c, h.rideService.PublishRide)
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	h.lifecycle(c, h.rideService.StartRide)
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.lifecycle(c, h.rideService.CompleteRide)
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), actorOf(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

type rideTransition func(ctx context.Context, rideID string, actor domain.Actor) (*domain.Ride, error)

func (h *RideHandler) lifecycle(c *gin.Context, op rideTransition) {
	ride, err := op(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
