// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the single place where service errors are mapped to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"doordashboard/internal/auth"
	"doordashboard/internal/cache"
	"doordashboard/internal/core"
	"doordashboard/internal/log"
	"doordashboard/internal/storage"
)

// conflictRetryAfter is the Retry-After hint, in seconds, sent with 409s.
const conflictRetryAfter = 1

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="doordashboard"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 response. retryAfter > 0 adds a Retry-After hint.
func ConflictError(message string, retryAfter int) *JSONResponseBuilder {
	b := ErrorResponse(http.StatusConflict, message)
	if retryAfter > 0 {
		b.Header("Retry-After", strconv.Itoa(retryAfter))
	}
	return b
}

// TooManyRequestsError creates a 429 response telling the client how many
// seconds to wait.
func TooManyRequestsError(retryAfter int) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", strconv.Itoa(retryAfter))
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// writeJSON is shorthand for a 200 response carrying v.
func writeJSON(w http.ResponseWriter, v any) {
	NewJSONResponse().Body(v).Write(w)
}

// classify maps a service error to a status code, the message shown to the
// client and the error category used in logs.
func classify(err error) (status int, message, errType string) {
	switch {
	case errors.Is(err, core.ErrMalformedRecord):
		return http.StatusBadRequest, err.Error(), log.ErrorTypeMalformedRecord
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, err.Error(), log.ErrorTypeAuth
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error(), log.ErrorTypeAuth
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error(), log.ErrorTypeNotFound
	case errors.Is(err, storage.ErrWriteConflict):
		return http.StatusConflict, "the session store is busy, retry shortly", log.ErrorTypeConflict
	case errors.Is(err, storage.ErrUserExists):
		return http.StatusConflict, "username already taken", log.ErrorTypeConflict
	case errors.Is(err, cache.ErrReloadTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "data is being refreshed, retry shortly", log.ErrorTypeTimeout
	case errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "session store unavailable", log.ErrorTypeStoreUnavailable
	default:
		return http.StatusInternalServerError, "internal error", log.ErrorTypeInternal
	}
}

// writeServiceError logs err and renders it with the status classify picks.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message, errType := classify(err)

	logger := log.FromContext(r.Context())
	fields := []any{log.FieldOperation, op, log.FieldErrorType, errType, log.FieldError, err}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields...)
	}

	var b *JSONResponseBuilder
	switch status {
	case http.StatusUnauthorized:
		b = UnauthorizedError(message)
	case http.StatusConflict:
		retry := 0
		if errors.Is(err, storage.ErrWriteConflict) {
			retry = conflictRetryAfter
		}
		b = ConflictError(message, retry)
	default:
		b = ErrorResponse(status, message)
	}
	b.Write(w)
}
