package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"doordashboard/internal/log"
)

type observed struct {
	method string
	route  string
	status int
}

func TestMiddleware_TracesRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: "text"})

	var got []observed
	m := NewMiddleware(logger, func(*http.Request) string { return "9.9.9.9" }, func(method, route string, status int, _ time.Duration) {
		got = append(got, observed{method, route, status})
	})

	var seenID string
	var seenLogger *log.Logger
	mux := http.NewServeMux()
	mux.Handle("GET /api/summary", Route("GET /api/summary", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))
	h := m.Middleware(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.HasPrefix(seenID, "req_") {
		t.Errorf("request id = %q, want req_ prefix", seenID)
	}
	if rr.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("response header id = %q, want %q", rr.Header().Get(RequestIDHeader), seenID)
	}
	if seenLogger == nil || seenLogger.Component() != log.ComponentHTTP {
		t.Errorf("request logger not attached")
	}
	if !strings.Contains(buf.String(), "request_id="+seenID) || !strings.Contains(buf.String(), "status_code=418") {
		t.Errorf("completion log missing fields: %s", buf.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	want := []observed{
		{http.MethodGet, "GET /api/summary", http.StatusTeapot},
		{http.MethodGet, "", http.StatusNotFound},
	}
	if len(got) != len(want) {
		t.Fatalf("observed %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if m.TotalRequests() != 2 {
		t.Errorf("TotalRequests() = %d, want 2", m.TotalRequests())
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid", "abc-123", true},
		{"with space", "abc 123", false},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			got := rr.Header().Get(RequestIDHeader)
			if (got == tt.incoming) != tt.keep {
				t.Errorf("response id = %q, keep = %v", got, tt.keep)
			}
		})
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rw.statusCode)
	}
}
