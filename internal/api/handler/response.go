package handler

import (
	"directchat/backend/internal/apperror"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps an error to its HTTP status and error type. A taken username
// is 422: clients treat it as "choose another value".
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusUnprocessableEntity, "conflict"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError localizes and writes err, aborting the chain. Untyped errors are
// logged and reported as a generic internal error.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, errType := statusFor(err)
	lang := h.language(c)

	appErr, ok := apperror.As(err)
	if !ok || status == http.StatusInternalServerError {
		requestLogger(c, h.Log).Error("request failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: h.translate(lang, "error.internal", "An internal error occurred"),
		})
		return
	}

	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   errType,
		Message: h.translate(lang, appErr.Key, appErr.Message),
		Field:   appErr.Field,
	})
}

// translate returns the localized text for key, or fallback when no
// catalogue has it.
func (h *Handler) translate(lang, key, fallback string) string {
	if h.Localizer == nil || key == "" || !h.Localizer.Has(lang, key) {
		return fallback
	}
	return h.Localizer.Get(lang, key)
}

func badRequest(message string) error {
	return apperror.ValidationFailed("", "error.bad_request", message)
}
