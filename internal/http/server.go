// Package http exposes the budgeting services as a JSON REST API.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"budgeteer/internal/log"
	"budgeteer/internal/metrics"
	"budgeteer/internal/middleware/ratelimit"
	"budgeteer/internal/middleware/security"
	"budgeteer/internal/middleware/trace"
	"budgeteer/internal/services"
	appweb "budgeteer/web"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Services *services.Services
	Storage  Pinger
	Logger   *log.Logger
	// RateLimitPerMinute caps /api requests per client IP.
	RateLimitPerMinute int
	// TrustedProxies are extra CIDRs whose forwarded headers are honoured.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc      *services.Services
	storage  Pinger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range d.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		svc:      d.Services,
		storage:  d.Storage,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger.Slog()),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.FileServer(http.FS(sub))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", static)))
		mux.Handle("GET /{$}", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("POST /api/auth/logout", s.requireAuth(s.handleLogout))

	mux.Handle("GET /api/me", s.requireAuth(s.handleMe))
	mux.Handle("PUT /api/me/period", s.requireAuth(s.handleSetPeriod))

	mux.Handle("GET /api/incomes", s.requireAuth(s.handleListIncomes))
	mux.Handle("POST /api/incomes", s.requireAuth(s.handleCreateIncome))
	mux.Handle("PUT /api/incomes/{id}", s.requireAuth(s.handleUpdateIncome))
	mux.Handle("DELETE /api/incomes/{id}", s.requireAuth(s.handleDeleteIncome))

	mux.Handle("GET /api/budgets", s.requireAuth(s.handleListBudgets))
	mux.Handle("POST /api/budgets", s.requireAuth(s.handleCreateBudget))
	mux.Handle("POST /api/budgets/reset", s.requireAuth(s.handleResetBudgets))
	mux.Handle("GET /api/budgets/history", s.requireAuth(s.handleBudgetHistory))
	mux.Handle("GET /api/budgets/{id}", s.requireAuth(s.handleGetBudget))
	mux.Handle("PUT /api/budgets/{id}", s.requireAuth(s.handleUpdateBudget))
	mux.Handle("DELETE /api/budgets/{id}", s.requireAuth(s.handleDeleteBudget))

	mux.Handle("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("DELETE /api/expenses", s.requireAuth(s.handleClearExpenses))
	mux.Handle("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.Handle("GET /api/summary", s.requireAuth(s.handleSummary))

	mux.Handle("GET /api/tips", s.requireAuth(s.handleLatestTips))
	mux.Handle("POST /api/tips", s.requireAuth(s.handleGenerateTips))
	mux.Handle("POST /api/tips/refresh", s.requireAuth(s.handleRefreshTips))

	mux.Handle("GET /api/feedback", s.requireAuth(s.handleListFeedback))
	mux.Handle("POST /api/feedback", s.requireAuth(s.handleSubmitFeedback))
}

// middleware wraps the mux, outermost first: security headers, tracing,
// request-scoped logger, suspicious request logging, rate limiting, metrics.
func (s *Server) middleware(mux *http.ServeMux) http.Handler {
	var h http.Handler = mux
	h = s.observe(h)
	h = s.limitAPI(h)
	h = s.detector.Middleware(s.logger.WithComponent(log.ComponentSecurity).Slog())(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return h
}

// observe records request metrics. It must wrap the mux directly so the
// matched pattern is visible after ServeHTTP returns.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &trace.ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		metrics.ObserveRequest(r.Method, r.Pattern, rw.StatusCode, time.Since(start))
	})
}

func (s *Server) limitAPI(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			security.APIMiddleware(limited).ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// stats summarises middleware counters for the readiness payload.
func (s *Server) stats() map[string]any {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.Stats()
	return map[string]any{
		"requests_total":        tm.TotalRequests,
		"avg_response_time_us":  tm.AverageResponseTime,
		"rate_limited_total":    rm.TotalHits,
		"rate_limit_clients":    rm.ClientCount,
		"suspicious_requests":   dm.Suspicious,
		"summary_cache_entries": s.svc.Summary.Cache().Size(),
		"uptime_seconds":        int64(time.Since(s.started).Seconds()),
	}
}
