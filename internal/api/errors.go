package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/fetchstore/internal/api/shared"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/service"
)

// Request errors raised by the handlers themselves.
var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidWaitParam = errors.New("invalid wait parameter")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrEmptyOrMissingURL),
		errors.Is(err, shared.ErrInvalidJSON),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidWaitParam),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrFetchNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Internal
// details are never included.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrEmptyOrMissingURL):
		return "imageUrl is required"
	case errors.Is(err, shared.ErrInvalidJSON):
		return "Invalid request format"
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)
	case errors.Is(err, ErrInvalidID):
		return "Invalid fetch id"
	case errors.Is(err, ErrInvalidWaitParam):
		return "Invalid wait parameter"
	case errors.Is(err, service.ErrFetchNotFound):
		return "Fetch not found"
	case errors.Is(err, service.ErrBusy):
		return "Server is busy, try again later"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}

	fe := errs[0]
	field := fe.Field()
	if field == "" {
		return "Validation error"
	}
	return fmt.Sprintf("Invalid %s: %s", lowerFirst(field), validationTagMessage(fe.Tag()))
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "url", "http_url":
		return "must be a URL"
	default:
		return "validation failed"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
