package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openhouselabs/dealdesk/service/config"
	"github.com/openhouselabs/dealdesk/service/db"
	"github.com/openhouselabs/dealdesk/service/delivery"
	"github.com/openhouselabs/dealdesk/service/events"
	"github.com/openhouselabs/dealdesk/service/metrics"
	"github.com/openhouselabs/dealdesk/service/render"
)

// Pipeline bundles the dependencies one submission flows through:
// template load, render, delivery, archive, event publish.
// Store and Publisher are optional; nil disables the archive and eventing.
type Pipeline struct {
	Loader       *render.TemplateLoader
	Renderer     *render.Renderer
	Orchestrator *delivery.Orchestrator
	Store        *db.Store
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	BaseURL      string
}

// Server represents the HTTP server for the submission service.
type Server struct {
	addr     string
	cfg      *config.Config
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, pipeline *Pipeline, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		pipeline: pipeline,
		metrics:  m,
		logger:   logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Submission pipeline routes
	mux.Handle("POST /api/v1/transactions", handleSubmitTransaction(s.pipeline, s.logger))

	// Archive routes (if the store is configured)
	if s.pipeline.Store != nil {
		mux.Handle("GET /api/v1/submissions/{id}", handleGetSubmission(s.pipeline.Store, s.logger))
		mux.Handle("GET /api/v1/submissions", handleListSubmissions(s.pipeline.Store, s.logger))
		s.logger.Info("submission archive endpoints enabled")
	} else {
		s.logger.Warn("archive store not configured, submission lookup endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS and request metrics middleware
	handler := corsMiddleware(metricsMiddleware(s.metrics, mux))

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.pipeline.Publisher != nil {
		s.pipeline.Publisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS
// preflight requests. The agent portal form posts here cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and durations. A nil Metrics
// makes this a no-op passthrough.
func metricsMiddleware(m *metrics.Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
