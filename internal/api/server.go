// Package api exposes the leak audit over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"leak-audit/internal/audit"
	"leak-audit/internal/common/auth"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/crm"
	"leak-audit/internal/leak"
	"leak-audit/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxBody = 64 * 1024

// AuditService is the behaviour the handlers need from the audit service.
type AuditService interface {
	Providers() []string
	Connect(ctx context.Context, subject string, creds crm.Credentials) (crm.Result, error)
	Run(ctx context.Context, req audit.Request) (*leak.Report, error)
	Analyze(ctx context.Context, provider string, records []leak.Opportunity) (audit.AnalyzeResult, error)
	LatestReport(ctx context.Context, subject, provider string) (*leak.Report, error)
	CreateAction(ctx context.Context, subject, leakID, recommendedAction string) (repository.Action, error)
	Analytics(ctx context.Context, subject string) (leak.WeeklyTrend, error)
	PipelineAnalytics(ctx context.Context, provider string) (leak.PipelineAnalytics, error)
	Search(ctx context.Context, subject, q string, size int) ([]leak.Leak, error)
}

// Checker is a dependency probed by /ready.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

type Options struct {
	Service        AuditService
	Issuer         *auth.Issuer
	Logger         logger.Logger
	MaxBodyBytes   int64
	AllowedOrigins []string
	Checks         map[string]Checker
	MetricsHandler http.Handler
	Clock          func() time.Time
}

type Server struct {
	svc            AuditService
	issuer         *auth.Issuer
	logger         logger.Logger
	maxBody        int64
	allowedOrigins []string
	checks         map[string]Checker
	now            func() time.Time
	router         chi.Router
}

func NewServer(opts Options) *Server {
	s := &Server{
		svc:            opts.Service,
		issuer:         opts.Issuer,
		logger:         opts.Logger,
		maxBody:        opts.MaxBodyBytes,
		allowedOrigins: opts.AllowedOrigins,
		checks:         opts.Checks,
		now:            opts.Clock,
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	s.logger = s.logger.WithFields(map[string]interface{}{"component": "api"})
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}
	if s.now == nil {
		s.now = time.Now
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	s.router = s.routes(metricsHandler)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)
	r.Use(s.limitBody)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/providers", s.handleProviders)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/connect", s.handleConnect)
		r.Post("/leaks", s.handleLeaks)
		r.Post("/leaks/summary", s.handleLeakSummary)
		r.Post("/leaks/analyze", s.handleAnalyze)
		r.Get("/leaks/latest", s.handleLatest)
		r.Get("/leaks/search", s.handleSearch)
		r.Post("/actions", s.handleCreateAction)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/analytics/pipeline", s.handlePipelineAnalytics)
	})
	return r
}
