// Package errs defines the domain error taxonomy shared by all layers.
package errs

import "errors"

var (
	// ErrNotFound is returned when a resource is absent or not visible to the
	// caller. The two cases are intentionally indistinguishable so that the
	// existence of inaccessible resources is never leaked.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when no authenticated identity is present
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when an action is not permitted for the caller
	ErrForbidden = errors.New("forbidden")

	// ErrQuotaExceeded is returned when a per-plan ceiling is reached
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Machine-readable error codes surfaced to API clients. QuotaExceeded and
// Forbidden are distinct codes on purpose: clients upsell on the former and
// hide UI on the latter.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "PERMISSION_DENIED"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeInternal      = "INTERNAL_ERROR"
)

// Code maps err to its machine-readable code, CodeInternal when unrecognized.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrQuotaExceeded):
		return CodeQuotaExceeded
	default:
		return CodeInternal
	}
}
