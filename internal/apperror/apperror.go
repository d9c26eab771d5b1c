// Package apperror defines the typed outcomes returned from the service
// boundary. Anything that does not unwrap to one of the sentinels below is
// an internal error.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// AppError carries a sentinel, a human-readable message and, for validation
// failures, the offending field.
type AppError struct {
	Err     error
	Message string
	Field   string
	// Key is the localization key for the user-facing message.
	Key string
	// RetryAfter is set for rate-limit rejections.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, key, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Key:     key,
	}
}

func Conflict(resource, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q is already in use", resource, value),
		Key:     "error." + resource + "_taken",
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Key:     "error." + resource + "_not_found",
	}
}

// RateLimited reports an admission-control rejection; safe to retry after the window.
func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "too many messages, slow down",
		Key:        "error.rate_limited",
		RetryAfter: retryAfter,
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "valid authentication required",
		Key:     "error.unauthenticated",
	}
}

// As extracts the *AppError from err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
