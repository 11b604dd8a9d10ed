package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/auth"
	"doordashboard/internal/core"
	"doordashboard/internal/log"
	"doordashboard/internal/middleware/ratelimit"
	"doordashboard/internal/middleware/security"
	"doordashboard/internal/middleware/trace"
	"doordashboard/internal/observability"
	"doordashboard/internal/services"
)

// DashboardReader is the read side the JSON API serves.
type DashboardReader interface {
	Summary(ctx context.Context) (aggregate.Summary, error)
	Weekly(ctx context.Context) ([]aggregate.Week, error)
	ByMerchant(ctx context.Context, order aggregate.MerchantSort) ([]aggregate.Merchant, error)
	TimeSeries(ctx context.Context) (aggregate.Columns, error)
	Locations(ctx context.Context, key aggregate.LocationKey) ([]aggregate.LocationCount, error)
	List(ctx context.Context, f services.SessionFilter) (services.SessionPage, error)
	Debug(ctx context.Context) (services.DebugInfo, error)
	DebugSummary(ctx context.Context) ([]services.SessionBreakdown, error)
}

// SessionWriter is the write side.
type SessionWriter interface {
	Append(ctx context.Context, raw core.RawSession) (services.Appended, error)
	Delete(ctx context.Context, index int) error
	DeleteByID(ctx context.Context, id string) error
}

// Authenticator registers and signs in dashboard users.
type Authenticator interface {
	Register(ctx context.Context, username, password, email string, admin bool) (auth.Grant, error)
	Login(ctx context.Context, username, password string) (auth.Grant, error)
	Me(ctx context.Context, claims *auth.Claims) (auth.User, error)
}

// Check is one readiness probe dependency.
type Check func(ctx context.Context) error

// Deps are the services the server routes to.
type Deps struct {
	Dashboard DashboardReader
	Sessions  SessionWriter
	Auth      Authenticator
	Tokens    auth.TokenConfig
	Checks    map[string]Check
	Logger    *log.Logger
}

// Options tune the server.
type Options struct {
	ClientBuild        string
	RateLimitPerMinute int
	Gatherer           prometheus.Gatherer
}

// Server wraps http.Server with the dashboard routes and middleware chain.
type Server struct {
	http.Server
	deps    Deps
	opts    Options
	logger  *log.Logger
	mux     *http.ServeMux
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:             deps,
		opts:             opts,
		logger:           deps.Logger.WithComponent(log.ComponentHTTP),
		mux:              http.NewServeMux(),
		started:          time.Now(),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.traceMiddleware = trace.NewMiddleware(deps.Logger, s.securityDetector.ExtractClientIP, observability.ObserveHTTP)

	s.routes()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	authRoutes := log.ComponentMiddleware(log.ComponentAuth)
	s.handle("POST /api/auth/register", authRoutes(http.HandlerFunc(s.handleRegister)))
	s.handle("POST /api/auth/login", authRoutes(http.HandlerFunc(s.handleLogin)))
	s.handle("GET /api/auth/me", authRoutes(http.HandlerFunc(s.handleMe)))

	s.handle("GET /api/summary", http.HandlerFunc(s.handleSummary))
	s.handle("GET /api/weekly", http.HandlerFunc(s.handleWeekly))
	s.handle("GET /api/restaurants", http.HandlerFunc(s.handleRestaurants))
	s.handle("GET /api/locations", http.HandlerFunc(s.handleLocations))
	s.handle("GET /api/timeseries", http.HandlerFunc(s.handleTimeSeries))

	s.handle("GET /api/sessions", http.HandlerFunc(s.handleListSessions))
	s.handle("POST /api/sessions", http.HandlerFunc(s.handleCreateSession))
	s.handle("DELETE /api/sessions/{index}", http.HandlerFunc(s.handleDeleteSession))
	s.handle("DELETE /api/sessions/id/{id}", http.HandlerFunc(s.handleDeleteSessionByID))

	s.handle("GET /api/debug", http.HandlerFunc(s.handleDebug))
	s.handle("GET /api/debug/summary", http.HandlerFunc(s.handleDebugSummary))

	s.handle("GET /healthz", http.HandlerFunc(s.handleHealth))
	s.handle("GET /readyz", http.HandlerFunc(s.handleReady))
	s.handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	s.handle("GET /", s.clientHandler())
}

func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, trace.Route(pattern, h))
}

// middleware wraps the mux, outermost first: tracing, security headers,
// probe detection, rate limiting of writes, bearer authentication.
func (s *Server) middleware(next http.Handler) http.Handler {
	authn := auth.Middleware{
		Config:  s.deps.Tokens,
		Skipper: isPublicAPI,
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			writeServiceError(w, r, log.OpLogin, err)
		},
	}
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, isMutating, func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
		observability.RecordRateLimited()
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"retry_after_s", d.RetryAfterSeconds())
		TooManyRequestsError(d.RetryAfterSeconds()).Write(w)
	})
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	h := authn.Wrap(next)
	h = limited(h)
	h = s.detectProbes(h)
	h = headers.Middleware(h)
	return s.traceMiddleware.Middleware(h)
}

// detectProbes logs and counts requests that look like scans. They are
// still served; the routes they hit do not exist.
func (s *Server) detectProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, ok := s.securityDetector.Inspect(r); ok {
			observability.RecordSuspicious()
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldReason, reason,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and stops background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
