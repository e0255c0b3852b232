package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fathomdata/warden/pkg/throttle"
)

const (
	// UserIDHeader carries the authenticated user identity, attached by an
	// upstream authentication layer. Trusted as-is; verification is not
	// this middleware's job.
	UserIDHeader = "X-User-ID"

	// ForwardedForHeader is the standard proxy forwarding header.
	ForwardedForHeader = "X-Forwarded-For"
)

// RateLimitMiddleware enforces the per-client sliding-window request limit.
//
// Exempt paths bypass the limiter entirely: no client identification, no
// counting, no headers. Every counted response carries X-RateLimit-Limit,
// X-RateLimit-Remaining, and X-RateLimit-Reset so clients can pace
// themselves before hitting the ceiling.
//
// A denied request receives 429 with a JSON body and a Retry-After header;
// it consumes nothing, so the client may retry as soon as the oldest
// recorded request leaves the window.
//
// Example:
//
//	limiter := throttle.NewLimiter(throttle.DefaultConfig(), nil)
//	handler := RateLimitMiddleware(limiter, time.Now, "/v1/health", "/metrics")(next)
func RateLimitMiddleware(limiter *throttle.Limiter, now func() time.Time, exemptPrefixes ...string) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	logger := slog.Default().With("component", "middleware.ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exemptPrefixes {
				if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := throttle.Identify(
				r.Header.Get(UserIDHeader),
				r.Header.Get(ForwardedForHeader),
				r.RemoteAddr,
			)

			decision := limiter.Admit(key, now())
			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				logger.Warn("request throttled",
					"client_key", string(key),
					"path", r.URL.Path,
					"count", decision.Count,
					"limit", decision.Limit,
					"request_id", GetRequestID(r.Context()),
				)
				writeRateLimitExceeded(w, decision)
				return
			}

			ctx := context.WithValue(r.Context(), ClientKeyKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setRateLimitHeaders sets the standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, d throttle.Decision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.Reset.Unix()))
}

// writeRateLimitExceeded writes the 429 denial response.
func writeRateLimitExceeded(w http.ResponseWriter, d throttle.Decision) {
	retryAfter := int(d.RetryAfter.Seconds())
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":       "rate limit exceeded",
		"message":     fmt.Sprintf("Too many requests. Limit is %d requests per %s.", d.Limit, d.RetryAfter),
		"retry_after": retryAfter,
	})
}

// GetClientKey extracts the throttle client key from the context.
// Returns empty string if the request was exempt from throttling.
func GetClientKey(ctx context.Context) throttle.ClientKey {
	if key, ok := ctx.Value(ClientKeyKey).(throttle.ClientKey); ok {
		return key
	}
	return ""
}
