package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fathomdata/warden/pkg/throttle"
)

// testClock returns a controllable clock function.
func testClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRateLimitMiddleware_AllowsWithinLimit verifies requests under the
// ceiling pass through with rate limit headers set.
func TestRateLimitMiddleware_AllowsWithinLimit(t *testing.T) {
	limiter := throttle.NewLimiter(throttle.Config{RequestsPerWindow: 5, Window: time.Minute}, nil)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	handler := RateLimitMiddleware(limiter, testClock(now), "/v1/health")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
	req.Header.Set(UserIDHeader, "u-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("expected limit header 5, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("expected remaining header 4, got %q", got)
	}
	wantReset := strconv.FormatInt(now.Add(time.Minute).Unix(), 10)
	if got := rec.Header().Get("X-RateLimit-Reset"); got != wantReset {
		t.Errorf("expected reset header %s, got %q", wantReset, got)
	}
}

// TestRateLimitMiddleware_DeniesOverLimit verifies the 429 response shape.
func TestRateLimitMiddleware_DeniesOverLimit(t *testing.T) {
	limiter := throttle.NewLimiter(throttle.Config{RequestsPerWindow: 2, Window: time.Minute}, nil)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	handler := RateLimitMiddleware(limiter, testClock(now), "/v1/health")(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/usage/limits", nil)
		req.Header.Set(UserIDHeader, "u-2")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/limits", nil)
	req.Header.Set(UserIDHeader, "u-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected remaining header 0, got %q", got)
	}

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode denial body: %v", err)
	}
	if body.Error != "rate limit exceeded" {
		t.Errorf("expected error %q, got %q", "rate limit exceeded", body.Error)
	}
	if body.RetryAfter != 60 {
		t.Errorf("expected retry_after 60, got %d", body.RetryAfter)
	}
	if body.Message == "" {
		t.Error("expected a human-readable message")
	}
}

// TestRateLimitMiddleware_ExemptPath verifies exempt paths are neither
// counted nor decorated with rate limit headers.
func TestRateLimitMiddleware_ExemptPath(t *testing.T) {
	store := throttle.NewWindowStore(time.Minute)
	limiter := throttle.NewLimiter(throttle.Config{RequestsPerWindow: 1, Window: time.Minute}, store)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	handler := RateLimitMiddleware(limiter, testClock(now), "/v1/health", "/metrics")(okHandler())

	for i := 0; i < 10; i++ {
		for _, path := range []string{"/v1/health", "/metrics"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set(UserIDHeader, "u-3")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("%s request %d: expected 200, got %d", path, i, rec.Code)
			}
			if rec.Header().Get("X-RateLimit-Limit") != "" {
				t.Errorf("%s: exempt path must not carry rate limit headers", path)
			}
		}
	}

	if store.Len() != 0 {
		t.Errorf("exempt traffic must not be tracked, store has %d clients", store.Len())
	}
}

// TestRateLimitMiddleware_IdentitySeparation verifies a throttled user does
// not affect a different user from the same address.
func TestRateLimitMiddleware_IdentitySeparation(t *testing.T) {
	limiter := throttle.NewLimiter(throttle.Config{RequestsPerWindow: 1, Window: time.Minute}, nil)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	handler := RateLimitMiddleware(limiter, testClock(now))(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
	first.Header.Set(UserIDHeader, "u-a")
	first.RemoteAddr = "198.51.100.1:1111"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	blocked := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
	blocked.Header.Set(UserIDHeader, "u-a")
	blocked.RemoteAddr = "198.51.100.1:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, blocked)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeat user, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
	other.Header.Set(UserIDHeader, "u-b")
	other.RemoteAddr = "198.51.100.1:1111"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for different user, got %d", rec.Code)
	}
}

// TestRateLimitMiddleware_DenialDoesNotConsume verifies denied requests do
// not extend the throttled period.
func TestRateLimitMiddleware_DenialDoesNotConsume(t *testing.T) {
	limiter := throttle.NewLimiter(throttle.Config{RequestsPerWindow: 1, Window: time.Minute}, nil)
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	current := base
	handler := RateLimitMiddleware(limiter, func() time.Time { return current })(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
		req.Header.Set(UserIDHeader, "u-c")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	for i := 0; i < 20; i++ {
		if code := send(); code != http.StatusTooManyRequests {
			t.Fatalf("denial %d: expected 429, got %d", i, code)
		}
	}

	// Only the single admitted request occupies the window; once it ages
	// out the client is admitted again despite the denial storm.
	current = base.Add(time.Minute + time.Second)
	if code := send(); code != http.StatusOK {
		t.Errorf("after window: expected 200, got %d", code)
	}
}
