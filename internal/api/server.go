package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"phishguard/internal/api/health"
	"phishguard/internal/api/insights"
	"phishguard/internal/api/middleware"
	"phishguard/internal/api/prediction"
	"phishguard/internal/api/respond"
	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PredictLimiter throttles POST /predict; nil disables it
	PredictLimiter *rate.Limiter
}

// Handlers groups the endpoint handlers the server routes to
type Handlers struct {
	Health     *health.Handler
	Prediction *prediction.Handler
	Insights   *insights.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds the route table wrapped in the shared middleware
func NewRouter(cfg ServerConfig, h Handlers, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Service info
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "operational",
		})
	})

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", h.Health.HandleHealth)
	mux.HandleFunc("GET /ready", h.Health.HandleReadiness)
	mux.HandleFunc("GET /live", h.Health.HandleLiveness)

	// Model
	mux.Handle("POST /predict", middleware.RateLimit(cfg.PredictLimiter)(http.HandlerFunc(h.Prediction.HandlePredict)))
	mux.HandleFunc("GET /model/info", h.Prediction.HandleModelInfo)

	// Dashboard insights
	mux.HandleFunc("GET /metrics/threat-block-rate", h.Insights.HandleThreatBlockRate)
	mux.HandleFunc("GET /metrics/product-efficacy", h.Insights.HandleProductEfficacy)
	mux.HandleFunc("GET /metrics/user/{user_id}", h.Insights.HandleUserMetrics)
	mux.HandleFunc("GET /metrics/threat-intel-summary", h.Insights.HandleThreatIntelSummary)

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(log),
		middleware.Recover(log),
	)
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, h Handlers, log *logger.Logger) *Server {
	port := 8000
	if cfg.Port > 0 {
		port = cfg.Port
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      NewRouter(cfg, h, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
