package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/middleware"
	"rideshare/internal/service"
)

// InventoryHandler exposes the inventory ledger to booking components running
// in other deployments. Routes are internal and require a system token.
type InventoryHandler struct {
	rideService *service.RideService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(rideService *service.RideService) *InventoryHandler {
	return &InventoryHandler{rideService: rideService}
}

// AdjustSeatsRequest is the body of a seat adjustment. The idempotency key
// travels in the Idempotency-Key header.
type AdjustSeatsRequest struct {
	Delta int `json:"delta"`
}

// RevertSeatsRequest names the adjustment to undo.
type RevertSeatsRequest struct {
	Key string `json:"key"`
}

// Snapshot handles GET /internal/rides/:id
func (h *InventoryHandler) Snapshot(c *gin.Context) {
	ride, err := h.rideService.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, service.NewRideSnapshot(ride))
}

// AdjustSeats handles POST /internal/rides/:id/seats
func (h *InventoryHandler) AdjustSeats(c *gin.Context) {
	var req AdjustSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	ride, err := h.rideService.AdjustSeats(c.Request.Context(), c.Param("id"), req.Delta, c.GetHeader(middleware.IdempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, service.NewRideSnapshot(ride))
}

// RevertSeats handles POST /internal/rides/:id/seats/revert
func (h *InventoryHandler) RevertSeats(c *gin.Context) {
	var req RevertSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	ride, err := h.rideService.RevertSeats(c.Request.Context(), c.Param("id"), req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, service.NewRideSnapshot(ride))
}
