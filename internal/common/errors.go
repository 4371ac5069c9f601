// Package common defines the sentinel errors shared by the store, the
// messaging core and the HTTP layer. Callers match them with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// Request errors.
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")

	// Status machine errors. Every unknown status is also an invalid transition.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = fmt.Errorf("unknown status: %w", ErrInvalidTransition)

	// Optimistic concurrency: the stored record moved before our write landed.
	ErrConflict = errors.New("conflict")

	// Persistence layer unavailable or failing.
	ErrStorage = errors.New("storage failure")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)

// Validationf returns an ErrValidation carrying a client-facing reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Code names the class of err for clients. Unclassified errors are "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return "unauthorized"
	default:
		return "internal"
	}
}
