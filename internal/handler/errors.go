package handler

import (
	"errors"
	"net/http"

	"newsroom-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError is the standard error response body.
type APIError struct {
	Error string `json:"error"`
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
// Typed errors keep their message; everything unexpected becomes an
// opaque 500.
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrDependencyNotReady), errors.Is(err, models.ErrStepNotReady):
		status = http.StatusConflict
	case errors.Is(err, models.ErrBatchInProgress):
		status = http.StatusConflict
	case errors.Is(err, models.ErrConfiguration):
		status = http.StatusInternalServerError
	case errors.Is(err, models.ErrUpstream):
		status = http.StatusBadGateway
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		status = http.StatusInternalServerError
		message = "an unexpected internal error occurred"
	}

	c.AbortWithStatusJSON(status, APIError{Error: message})
}
