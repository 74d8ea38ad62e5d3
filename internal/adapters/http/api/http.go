// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/ecoaudit/internal/domain/report"
	"github.com/okian/ecoaudit/pkg/logger"
	"github.com/okian/ecoaudit/pkg/metrics"
)

// DefaultMaxUploadBytes bounds a multipart upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 64 << 20

// AuditDependencies is what the audit endpoint needs from the service layer.
type AuditDependencies interface {
	AuditUpload(ctx context.Context, filename string, body io.Reader, epochs int) (*report.Report, error)
}

// Server wires HTTP routes for the audit API.
type Server struct {
	allowedOrigins []string
	ratePerMinute  int
	maxUpload      int64
	log            logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	auditHandler  *AuditHandler
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Empty means any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = append([]string(nil), origins...)
	}
}

// WithRateLimit caps audit requests per client IP per minute. Zero disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.ratePerMinute = perMinute
		}
	}
}

// WithMaxUploadBytes bounds the request body of POST /api/audit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLogger sets the logger used for failed audits.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps AuditDependencies, stats StatsProvider, opts ...Option) (*Server, error) {
	if deps == nil {
		return nil, ErrNilAuditor
	}
	s := &Server{maxUpload: DefaultMaxUploadBytes}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(stats)
	s.auditHandler = NewAuditHandler(deps, s.maxUpload, s.log)
	return s, nil
}

// Router builds the chi router with middleware and every API route attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	allowed := s.allowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.ratePerMinute > 0 {
			r.Use(httprate.LimitByIP(s.ratePerMinute, time.Minute))
		}
		r.Post("/api/audit", MetricsMiddleware(s.auditHandler.HandleAudit, "audit"))
	})
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	MissingDependency string `json:"missing_dependency,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	if body.Error == "" {
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}
