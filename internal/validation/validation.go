// Package validation normalizes and checks client input at the service
// boundary. Failures are *apperror.AppError values with field-specific text.
package validation

import (
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/config"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	usernameRule = fmt.Sprintf("required,min=%d,max=%d,alphanum", config.UsernameMinLen, config.UsernameMaxLen)
	messageRule  = fmt.Sprintf("required,max=%d", config.MessageMaxLen)
	prefixRule   = fmt.Sprintf("required,max=%d,alphanum", config.UsernameMaxLen)
)

// NormalizeUsername trims surrounding whitespace and lowercases.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Username normalizes raw and checks length and alphabet.
func Username(raw string) (string, error) {
	name := NormalizeUsername(raw)
	if err := validate.Var(name, usernameRule); err != nil {
		return "", usernameError(err)
	}
	return name, nil
}

// UsernamePrefix normalizes raw and reports whether it could start a valid
// username. It is used for search, where a bad prefix is not an error.
func UsernamePrefix(raw string) (string, bool) {
	prefix := NormalizeUsername(raw)
	if err := validate.Var(prefix, prefixRule); err != nil {
		return "", false
	}
	return prefix, true
}

// Message trims raw and checks it is non-empty and within the length limit.
// Length is counted in characters, not bytes.
func Message(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if err := validate.Var(text, messageRule); err != nil {
		return "", messageError(err)
	}
	return text, nil
}

func failedTag(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return ""
}

func usernameError(err error) *apperror.AppError {
	switch failedTag(err) {
	case "required", "min":
		return apperror.ValidationFailed("username", "error.username_too_short",
			fmt.Sprintf("Username must contain at least %d character(s)", config.UsernameMinLen))
	case "max":
		return apperror.ValidationFailed("username", "error.username_too_long",
			fmt.Sprintf("Username must contain at most %d character(s)", config.UsernameMaxLen))
	default:
		return apperror.ValidationFailed("username", "error.username_alphanumeric",
			"Username may only contain alphanumeric characters")
	}
}

func messageError(err error) *apperror.AppError {
	if failedTag(err) == "max" {
		return apperror.ValidationFailed("message", "error.message_too_long",
			fmt.Sprintf("Message must contain at most %d character(s)", config.MessageMaxLen))
	}
	return apperror.ValidationFailed("message", "error.message_empty", "Message must not be empty")
}
