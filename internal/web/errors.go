package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// APIError represents a structured API error
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// NewAPIError creates a new API error
func NewAPIError(code string, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrorResponse is the JSON structure for error responses
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// WriteError writes an error response and logs it with request context
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError) {
	logAttrs := []any{
		"correlation_id", GetCorrelationID(r.Context()),
		"code", apiErr.Code,
		"message", apiErr.Message,
		"status", statusCode,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if apiErr.cause != nil {
		logAttrs = append(logAttrs, "cause", apiErr.cause.Error())
	}

	if statusCode >= 500 {
		slog.Error("api error", logAttrs...)
	} else if statusCode >= 400 {
		slog.Warn("api error", logAttrs...)
	}

	WriteJSON(w, statusCode, ErrorResponse{Error: apiErr})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteDomainError maps domain errors onto status codes
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := domain.IsValidationError(err); ok {
		WriteError(w, r, http.StatusBadRequest, NewAPIError("VALIDATION_FAILED", ve.Error()).WithDetails(ve.Fields))
		return
	}
	if ae, ok := domain.IsAuthError(err); ok {
		WriteError(w, r, http.StatusUnauthorized, NewAPIError("AUTH_FAILED", ae.Detail))
		return
	}
	if le, ok := domain.IsLoadError(err); ok {
		WriteError(w, r, http.StatusBadGateway, NewAPIError("LOAD_FAILED", "failed to load exercise").WithCause(le))
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotMounted):
		WriteError(w, r, http.StatusNotFound, NewAPIError("NOT_FOUND", "not mounted").WithCause(err))
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrExerciseNotFound):
		WriteError(w, r, http.StatusNotFound, NewAPIError("NOT_FOUND", err.Error()))
	case errors.Is(err, domain.ErrInvalidDifficulty), errors.Is(err, domain.ErrNotExpandable), errors.Is(err, domain.ErrNodeClosed):
		WriteError(w, r, http.StatusBadRequest, NewAPIError("BAD_REQUEST", err.Error()))
	case errors.Is(err, domain.ErrNotReady), errors.Is(err, domain.ErrSessionEnded):
		WriteError(w, r, http.StatusConflict, NewAPIError("CONFLICT", err.Error()))
	default:
		WriteError(w, r, http.StatusInternalServerError, NewAPIError("INTERNAL_ERROR", "internal server error").WithCause(err))
	}
}
