// Package server implements the HTTP server for health checks and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	// Liveness should only fail if the process needs to be restarted.
	Liveness() bool
	// Readiness indicates whether the pipeline can take traffic.
	Readiness(ctx context.Context) bool
	// GetStatus returns per-component status details for probes.
	GetStatus() map[string]string
}

// Config configures the observability HTTP server.
type Config struct {
	Port           int
	MetricsEnabled bool
	MetricsPath    string
	LivenessPath   string
	ReadinessPath  string
}

// Server serves liveness, readiness and Prometheus metrics endpoints on
// a single port.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	config Config,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc(config.LivenessPath, LivenessHandler(healthChecker, logger))
	mux.HandleFunc(config.ReadinessPath, ReadinessHandler(healthChecker, logger))

	if config.MetricsEnabled {
		mux.Handle(config.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("starting observability server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down observability server")
	return s.httpServer.Shutdown(ctx)
}
