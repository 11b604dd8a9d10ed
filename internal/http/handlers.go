package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doordashboard/internal/middleware/security"
)

// readyTimeout bounds the whole readiness probe.
const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every dependency check and reports each one.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks)+1)

	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	checks["rate_limiter"] = "ok"

	NewJSONResponse().
		Status(httpStatus).
		Body(map[string]any{
			"status":         status,
			"timestamp":      time.Now().Format(time.RFC3339),
			"checks":         checks,
			"active_clients": s.rateLimiter.ActiveClients(),
		}).
		Write(w)
}

// clientHandler serves the built single-page client. Unknown paths fall back
// to index.html so client-side routes survive a reload. Unmatched /api paths
// and a missing build get a JSON 404.
func (s *Server) clientHandler() http.Handler {
	if s.opts.ClientBuild == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			NotFoundError("not found").Write(w)
		})
	}

	root := s.opts.ClientBuild
	files := http.FileServer(http.Dir(root))
	spa := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			NotFoundError("not found").Write(w)
			return
		}
		name := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(root, "index.html"))
	})
	return security.StaticAssetMiddleware(86400)(spa)
}
