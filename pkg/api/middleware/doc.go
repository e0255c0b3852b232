// Package middleware provides HTTP middleware for the Warden API server.
//
// # Middleware Chain
//
// Middleware is applied outermost-first in the following order:
//
//	Recovery -> Logging -> RequestID -> RateLimit -> mux
//
// Recovery sits outermost so a panic anywhere below it still produces a
// well-formed 500 response. Logging wraps everything that can affect the
// response status, including throttling. RequestID runs before RateLimit
// so denials are correlatable in logs.
//
// # Rate Limiting
//
// RateLimitMiddleware enforces the per-client sliding-window limit from
// pkg/throttle. Exempt paths (health probes, metrics scrapes) bypass
// identification and counting entirely. All counted responses carry
// X-RateLimit-* headers; denials return 429 with a Retry-After header and
// a JSON body.
//
// # Context Values
//
// Middleware stores values in the request context using typed keys:
// request ID, request start time, and the throttle client key. Accessors
// (GetRequestID, GetStartTime, GetClientKey) return zero values when the
// middleware that sets them did not run.
package middleware
