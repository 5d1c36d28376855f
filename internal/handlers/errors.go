package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/avatars"
	"github.com/muandane/special-stack/signet/internal/resolver"
	"github.com/muandane/special-stack/signet/internal/storage"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              int    `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

func handleError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		code       int
		message    string
		retryAfter int
		validation *ValidationError
		negative   *resolver.NegativeCachedError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation),
		errors.Is(err, avatars.ErrInvalidUserID),
		errors.Is(err, avatars.ErrEmptyAvatar):
		code = http.StatusBadRequest
		message = "validation error"
	case errors.As(err, &tooLarge):
		code = http.StatusRequestEntityTooLarge
		message = "request body too large"
	case errors.As(err, &negative):
		code = http.StatusNotFound
		message = "signed url unavailable"
		retryAfter = int(math.Ceil(negative.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	case errors.Is(err, storage.ErrObjectNotFound):
		code = http.StatusNotFound
		message = "resource not found"
	case c.Request.Context().Err() != nil:
		code = http.StatusServiceUnavailable
		message = "request canceled"
	default:
		code = http.StatusBadGateway
		message = "storage error"
	}

	logger.Warn(message, zap.Error(err), zap.Int("code", code))
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:             err.Error(),
		Code:              code,
		Message:           message,
		RetryAfterSeconds: retryAfter,
	})
}
