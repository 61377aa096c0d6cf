// Package response provides JSON response helpers for API handlers.
package response

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/OpenxAI-Network/miniapp-factory/internal/pkg/errors"
)

// JSON writes a JSON response with the given status code. The value is
// encoded directly, without an envelope; handlers return plain values
// (strings, numbers, arrays) matching the API contract.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't do much else at this point
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Empty writes a 200 OK response with no body.
func Empty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// Error writes an error response. Caller-actionable errors carry a JSON
// body {"error": "..."}; internal conditions produce an empty body.
func Error(w http.ResponseWriter, err error) {
	apiErr := apierrors.AsAPIError(err)
	if apiErr.Message == "" {
		w.WriteHeader(apiErr.StatusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	json.NewEncoder(w).Encode(apiErr)
}

// BadRequest writes a 400 Bad Request error response with a message.
func BadRequest(w http.ResponseWriter, format string, args ...any) {
	Error(w, apierrors.NewValidationError(format, args...))
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter) {
	Error(w, apierrors.ErrUnauthorized)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter) {
	Error(w, apierrors.ErrInternal)
}
