package throttle

import (
	"sync/atomic"
	"time"
)

// Config contains configuration for the request rate limiter.
type Config struct {
	// RequestsPerWindow is the per-client request ceiling.
	// Default: 60
	RequestsPerWindow int

	// Window is the sliding window duration.
	// Default: 60 seconds
	Window time.Duration

	// ExemptPathPrefix exempts matching request paths (health checks) from
	// throttling entirely: no identification, no counting.
	// Default: "/v1/health"
	ExemptPathPrefix string

	// CleanupSchedule is the cron expression for periodic window cleanup.
	// Default: "*/5 * * * *" (every 5 minutes)
	CleanupSchedule string
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		ExemptPathPrefix:  "/v1/health",
		CleanupSchedule:   "*/5 * * * *",
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Count is the observed request count: post-insertion when allowed,
	// pre-insertion when denied.
	Count int

	// Limit is the configured per-window ceiling.
	Limit int

	// Remaining is the number of further requests allowed in the window,
	// floored at zero.
	Remaining int

	// RetryAfter is how long a denied caller should wait before retrying.
	// By then the oldest blocking entry will have aged out of the window.
	RetryAfter time.Duration

	// Reset is when the current window rolls over.
	Reset time.Time
}

// Limiter admits or rejects individual requests against a per-client
// sliding-window ceiling.
//
// Denial is a normal, modeled outcome, not an error, and a denied request
// never consumes a slot: the store is only mutated on admission, so a
// blocked client can retry successfully as soon as older entries age out.
type Limiter struct {
	store   *WindowStore
	limit   atomic.Int64
	window  time.Duration
	metrics *Metrics
}

// NewLimiter creates a limiter over the given window store. A nil store
// gets a fresh one sized to cfg.Window.
func NewLimiter(cfg Config, store *WindowStore) *Limiter {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if store == nil {
		store = NewWindowStore(cfg.Window)
	}

	l := &Limiter{
		store:  store,
		window: store.Window(),
	}
	l.limit.Store(int64(cfg.RequestsPerWindow))
	return l
}

// WithMetrics attaches Prometheus metrics to the limiter and returns it.
func (l *Limiter) WithMetrics(m *Metrics) *Limiter {
	l.metrics = m
	return l
}

// Admit decides whether the request identified by key may proceed at now.
//
// The pre-insertion count is compared against the ceiling: the question is
// "would this request exceed the cap", not "is there room after recording
// it speculatively". Only admitted requests are recorded.
func (l *Limiter) Admit(key ClientKey, now time.Time) Decision {
	limit := int(l.limit.Load())

	count := l.store.Count(key, now)
	if count >= limit {
		if l.metrics != nil {
			l.metrics.admissionChecks.WithLabelValues("denied").Inc()
		}
		return Decision{
			Allowed:    false,
			Count:      count,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: l.window,
			Reset:      now.Add(l.window),
		}
	}

	count = l.store.Record(key, now)

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	if l.metrics != nil {
		l.metrics.admissionChecks.WithLabelValues("allowed").Inc()
	}

	return Decision{
		Allowed:   true,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		Reset:     now.Add(l.window),
	}
}

// Limit returns the current per-window ceiling.
func (l *Limiter) Limit() int {
	return int(l.limit.Load())
}

// SetLimit atomically replaces the per-window ceiling. Used by config
// hot-reload; the window duration itself is fixed for the limiter's
// lifetime because pruning semantics are tied to it.
func (l *Limiter) SetLimit(n int) {
	if n <= 0 {
		return
	}
	l.limit.Store(int64(n))
}

// Window returns the sliding window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Store exposes the underlying window store for cleanup scheduling and
// read-only inspection.
func (l *Limiter) Store() *WindowStore {
	return l.store
}
