package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rideshare/internal/domain"
	"rideshare/internal/middleware"
	"rideshare/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ErrorResponse represents an error response. Code names the error kind and
// Fields carries its structured context.
type ErrorResponse struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Fields map[string]any `json:"fields,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error", Code: "internal"})
		return
	}
	c.JSON(code, ErrorResponse{
		Error:  err.Error(),
		Code:   service.Code(err),
		Fields: service.Fields(err),
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service error kinds to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrCapacity),
		errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the request body, answering 400 when it is malformed.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "invalid_input"})
		return false
	}
	return true
}

// actorOf returns the authenticated caller. Routes using it sit behind JWTAuth.
func actorOf(c *gin.Context) domain.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// queryLimit reads ?limit=, clamped to [1, maxListLimit].
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
