package config

import "time"

// Config is the root configuration structure for Warden.
// It contains all configuration sections for the HTTP server, the request
// rate limiter, usage tracking and quota storage, logging, and metrics.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Throttle contains configuration for the per-client request rate
	// limiter including window sizing and cleanup scheduling.
	Throttle ThrottleConfig `yaml:"throttle"`

	// Usage contains configuration for usage event recording, quota
	// evaluation, and the backing event store.
	Usage UsageConfig `yaml:"usage"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics exposure configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ThrottleConfig contains configuration for the request rate limiter.
type ThrottleConfig struct {
	// Enabled controls whether request throttling is active. When false
	// the middleware passes every request through untouched.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// RequestsPerWindow is the per-client request ceiling within one
	// sliding window. This value is hot-reloadable via the config watcher.
	// Default: 60
	RequestsPerWindow int `yaml:"requests_per_window"`

	// Window is the sliding window duration. Fixed at startup; changing it
	// requires a restart because pruning semantics are tied to it.
	// Default: 60s
	Window time.Duration `yaml:"window"`

	// ExemptPathPrefix exempts matching request paths from throttling.
	// Health probes must never be throttled.
	// Default: "/v1/health"
	ExemptPathPrefix string `yaml:"exempt_path_prefix"`

	// CleanupSchedule is the cron expression for sweeping idle client
	// windows. An empty value disables the sweep; lazy per-key pruning
	// still keeps counts correct.
	// Default: "*/5 * * * *"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// UsageConfig contains configuration for usage tracking and quotas.
type UsageConfig struct {
	// Storage selects and configures the usage event store backend.
	Storage StorageConfig `yaml:"storage"`

	// Recorder configures the asynchronous usage event recorder.
	Recorder RecorderConfig `yaml:"recorder"`

	// TierOverrides optionally replaces individual quota ceilings per tier.
	// Outer keys are tier names ("trial", "pilot", "subscription"); inner
	// keys are limit keys (e.g. "csv_uploads_per_month"). Use -1 for
	// unlimited. Overrides are applied once at startup; the resulting
	// table is immutable for the process lifetime.
	TierOverrides map[string]map[string]int64 `yaml:"tier_overrides"`
}

// StorageConfig contains configuration for the usage event store.
type StorageConfig struct {
	// Backend selects the store implementation: "sqlite" or "memory".
	// The memory backend keeps events in-process and is intended for
	// development and tests only.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific settings, used when Backend is "sqlite".
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific storage settings.
type SQLiteConfig struct {
	// Path is the filesystem path to the SQLite database file.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// Driver selects the SQL driver: "cgo" (mattn/go-sqlite3) or "pure"
	// (modernc.org/sqlite, for CGO-free builds).
	// Default: "cgo"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long SQLite waits on a locked database before
	// returning SQLITE_BUSY.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often the WAL is checkpointed in the
	// background. Zero disables background checkpointing.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// RecorderConfig contains configuration for the asynchronous usage recorder.
type RecorderConfig struct {
	// BufferSize is the capacity of the recorder's event channel. When the
	// buffer is full new events are dropped, never blocked on.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each store write performed by the background
	// worker.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus scrape endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
