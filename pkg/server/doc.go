// Package server provides the Warden HTTP API server.
//
// This package ties together the throttling middleware, usage handlers,
// and metrics endpoint, and provides server lifecycle management including
// start, graceful shutdown, and OS signal handling (SIGTERM, SIGINT).
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "fathomdata/warden/pkg/config"
//	    "fathomdata/warden/pkg/server"
//	    "fathomdata/warden/pkg/throttle"
//	    "fathomdata/warden/pkg/usage"
//	)
//
//	cfg := config.GetConfig()
//	limiter := throttle.NewLimiter(throttle.DefaultConfig(), nil)
//	evaluator := usage.NewEvaluator(store, usage.DefaultTierLimits())
//
//	srv := server.NewServer(cfg, limiter, evaluator)
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Routes
//
//   - GET /v1/usage/summary - aggregated usage by event type
//   - GET /v1/usage/limits - per-dimension quota report
//   - GET /v1/usage/quota-status - quick quota classification
//   - GET /v1/health - liveness probe (exempt from throttling)
//   - GET /metrics - Prometheus scrape endpoint (when enabled)
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost to innermost):
//  1. Recovery: Recovers from panics and returns 500 error
//  2. Logging: Logs request/response details
//  3. RequestID: Generates unique request ID for correlation
//  4. RateLimit: Enforces the per-client sliding-window limit
//
// # Graceful Shutdown
//
// The server shuts down automatically on SIGTERM or SIGINT, stopping new
// connections and waiting up to the configured shutdown timeout for
// in-flight requests to complete.
package server
