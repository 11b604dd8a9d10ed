package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"doordashboard/internal/auth"
	"doordashboard/internal/cache"
	"doordashboard/internal/core"
	"doordashboard/internal/storage"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]int{"index": 3}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != `{"index":3}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusNoContent).
		Header("X-Custom", "value").
		Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom header missing")
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		status  int
		header  string
		value   string
	}{
		{"bad request", BadRequestError("x"), http.StatusBadRequest, "", ""},
		{"unauthorized", UnauthorizedError("x"), http.StatusUnauthorized, "WWW-Authenticate", `Bearer realm="doordashboard"`},
		{"not found", NotFoundError("x"), http.StatusNotFound, "", ""},
		{"conflict with retry", ConflictError("x", 2), http.StatusConflict, "Retry-After", "2"},
		{"too many requests", TooManyRequestsError(42), http.StatusTooManyRequests, "Retry-After", "42"},
		{"unavailable", ServiceUnavailableError("x"), http.StatusServiceUnavailable, "", ""},
		{"internal", InternalServerError("x"), http.StatusInternalServerError, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			if tt.header != "" && w.Header().Get(tt.header) != tt.value {
				t.Errorf("%s = %q, want %q", tt.header, w.Header().Get(tt.header), tt.value)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("error body = %q", w.Body.String())
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err        error
		status     int
		retryAfter string
	}{
		{fmt.Errorf("append: %w", core.ErrMalformedRecord), http.StatusBadRequest, ""},
		{fmt.Errorf("%w: short password", auth.ErrInvalidInput), http.StatusBadRequest, ""},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, ""},
		{auth.ErrInvalidToken, http.StatusUnauthorized, ""},
		{fmt.Errorf("delete: %w", core.ErrNotFound), http.StatusNotFound, ""},
		{fmt.Errorf("append: %w", storage.ErrWriteConflict), http.StatusConflict, "1"},
		{storage.ErrUserExists, http.StatusConflict, ""},
		{cache.ErrReloadTimeout, http.StatusServiceUnavailable, ""},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, ""},
		{fmt.Errorf("append: %w", storage.ErrStoreUnavailable), http.StatusServiceUnavailable, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
			writeServiceError(w, r, "append", tt.err)
			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), "list", errors.New("open /secret/path: permission denied"))

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "internal error" {
		t.Errorf("error = %q, want generic message", body.Error)
	}
}
