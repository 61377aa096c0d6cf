// Package errors provides standardized API error types.
package errors

import (
	"fmt"
	"net/http"
)

// APIError represents an error surfaced to API callers. Only Message is
// serialised (as the `error` field of the response body); internal conditions
// carry an empty Message and produce an empty body.
type APIError struct {
	Message    string `json:"error,omitempty"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// WithMessage returns a copy of the error with a caller-visible message.
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	return &APIError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: e.StatusCode,
	}
}

// Standard error definitions
var (
	// ErrUnauthorized is returned when the auth header is missing or the
	// caller does not own the targeted project.
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrBadRequest is returned for validation failures and unknown resources.
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrPaymentRequired is returned when a ledger debit is vetoed by the store.
	ErrPaymentRequired = &APIError{StatusCode: http.StatusPaymentRequired}

	// ErrConflict is returned when a project already has an in-flight deployment.
	ErrConflict = &APIError{StatusCode: http.StatusTooManyRequests}

	// ErrForbidden is returned when the caller is known but not allowed.
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrRateLimited is returned when a client exceeds the request budget.
	ErrRateLimited = &APIError{
		Message:    "rate limit exceeded",
		StatusCode: http.StatusTooManyRequests,
	}

	// ErrInternal is returned for unexpected server errors.
	ErrInternal = &APIError{StatusCode: http.StatusInternalServerError}
)

// NewValidationError creates a 400 error with a caller-actionable message.
func NewValidationError(format string, args ...any) *APIError {
	return &APIError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadRequest,
	}
}

// AsAPIError converts an error to an APIError if possible.
// Returns ErrInternal if the error is not an APIError.
func AsAPIError(err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return ErrInternal
}
