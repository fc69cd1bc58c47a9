package handlers

import (
	"errors"
	"net/http"

	"escrow-marketplace/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto the JSON error envelope.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status, message, retryable := http.StatusInternalServerError, fallback, false
	switch {
	case errors.Is(err, services.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrTrustlineMissing):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrGateway):
		status, message, retryable = http.StatusBadGateway, err.Error(), true
	case errors.Is(err, services.ErrSignerUnavailable):
		status, message = http.StatusServiceUnavailable, services.ErrSignerUnavailable.Error()
	case errors.Is(err, services.ErrLedgerUnreconciled):
		message = services.ErrLedgerUnreconciled.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "error": message, "retryable": retryable})
}
