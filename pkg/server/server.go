// Package server provides the Warden HTTP API server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fathomdata/warden/pkg/api/handlers"
	"fathomdata/warden/pkg/api/middleware"
	"fathomdata/warden/pkg/config"
	"fathomdata/warden/pkg/throttle"
	"fathomdata/warden/pkg/usage"
)

// Server is the Warden HTTP API server. It wires the rate limiting
// middleware chain over the usage reporting endpoints.
type Server struct {
	config       *config.Config
	limiter      *throttle.Limiter
	evaluator    *usage.Evaluator
	recorder     *usage.Recorder
	version      string
	now          func() time.Time
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option adjusts server construction.
type Option func(*Server)

// WithVersion sets the version string reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithClock overrides the wall clock used for admission decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new API server. A nil recorder disables the event
// ingest endpoint.
func NewServer(cfg *config.Config, limiter *throttle.Limiter, evaluator *usage.Evaluator, recorder *usage.Recorder, opts ...Option) *Server {
	s := &Server{
		config:       cfg,
		limiter:      limiter,
		evaluator:    evaluator,
		recorder:     recorder,
		version:      "dev",
		now:          time.Now,
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting api server",
			"address", s.config.Server.ListenAddress,
			"throttle_enabled", s.config.Throttle.Enabled,
			"requests_per_window", s.limiter.Limit(),
			"window", s.limiter.Window().String(),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Set up signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("api server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	usageHandler := handlers.NewUsageHandler(s.evaluator, s.recorder)
	usageHandler.Register(mux)

	mux.Handle("/v1/health", handlers.NewHealthHandler(s.version))

	if s.config.Metrics.Enabled {
		mux.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	var handler http.Handler = mux

	// Rate limiting sits innermost so denials still pass through logging
	// and carry a request ID. Scrapes of the metrics endpoint are never
	// counted against a client.
	if s.config.Throttle.Enabled {
		exempt := []string{s.config.Throttle.ExemptPathPrefix}
		if s.config.Metrics.Enabled {
			exempt = append(exempt, s.config.Metrics.Path)
		}
		handler = middleware.RateLimitMiddleware(s.limiter, s.now, exempt...)(handler)
	}

	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
