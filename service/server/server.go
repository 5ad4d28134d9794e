package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the activity service.
type Server struct {
	addr     string
	deps     Deps
	renderer *TemplateRenderer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Fetcher  TransactionFetcher
	Enricher RecordEnricher
	Tokens   TokenResolver
	// Activity is optional; when nil the SSE endpoints are disabled.
	Activity ActivitySource
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint isn't mounted.
func New(addr string, deps Deps, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		deps:    deps,
		metrics: m,
		logger:  logger,
	}
}

// WithTemplates adds the live activity page using embedded templates.
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	route("GET /api/v1/transactions/{signature}", "/api/v1/transactions/{signature}",
		handleGetTransaction(s.deps.Fetcher, s.deps.Enricher, s.logger))
	route("GET /api/v1/tokens/{mint}", "/api/v1/tokens/{mint}",
		handleGetToken(s.deps.Tokens, s.logger))

	if s.deps.Activity != nil {
		stream := handleStreamActivity(s.deps.Activity, s.metrics, s.logger)
		route("GET /api/v1/stream/activity/{address}", "/api/v1/stream/activity/{address}", stream)
		route("GET /api/v1/stream/activity", "/api/v1/stream/activity", stream)
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("activity source not configured, streaming endpoints disabled")
	}

	if s.renderer != nil {
		page := handleActivityPage(s.renderer)
		mux.Handle("GET /{$}", page)
		mux.Handle("GET /stream", page)
		mux.Handle("GET /stream/{address}", page)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": Version}, http.StatusOK)
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: SSE responses are long-lived
		IdleTimeout: 60 * time.Second,
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

	if s.deps.Activity != nil {
		s.deps.Activity.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
