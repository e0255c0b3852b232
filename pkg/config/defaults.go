package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Throttle defaults
	DefaultThrottleEnabled   = true
	DefaultRequestsPerWindow = 60
	DefaultThrottleWindow    = 60 * time.Second
	DefaultExemptPathPrefix  = "/v1/health"
	DefaultCleanupSchedule   = "*/5 * * * *"

	// Usage storage defaults
	DefaultStorageBackend         = "sqlite"
	DefaultSQLitePath             = "data/usage.db"
	DefaultSQLiteDriver           = "cgo"
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultSQLiteCheckpointPeriod = 5 * time.Minute
	DefaultRecorderBufferSize     = 1000
	DefaultRecorderWriteTimeout   = 5 * time.Second

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// Default returns a fully populated configuration carrying every default
// value. LoadConfig unmarshals the YAML file over this baseline, so fields
// absent from the file keep their defaults while explicit values, including
// explicit false and zero, win.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
		},
		Throttle: ThrottleConfig{
			Enabled:           DefaultThrottleEnabled,
			RequestsPerWindow: DefaultRequestsPerWindow,
			Window:            DefaultThrottleWindow,
			ExemptPathPrefix:  DefaultExemptPathPrefix,
			CleanupSchedule:   DefaultCleanupSchedule,
		},
		Usage: UsageConfig{
			Storage: StorageConfig{
				Backend: DefaultStorageBackend,
				SQLite: SQLiteConfig{
					Path:               DefaultSQLitePath,
					Driver:             DefaultSQLiteDriver,
					BusyTimeout:        DefaultSQLiteBusyTimeout,
					CheckpointInterval: DefaultSQLiteCheckpointPeriod,
				},
			},
			Recorder: RecorderConfig{
				BufferSize:   DefaultRecorderBufferSize,
				WriteTimeout: DefaultRecorderWriteTimeout,
			},
		},
		Logging: LoggingConfig{
			Level:  DefaultLoggingLevel,
			Format: DefaultLoggingFormat,
		},
		Metrics: MetricsConfig{
			Enabled: DefaultMetricsEnabled,
			Path:    DefaultMetricsPath,
		},
	}
}

// ApplyDefaults fills zero-valued fields of a Config built in code.
// It cannot distinguish an explicit false or zero from an unset field;
// configs loaded from a file get their defaults from Default() instead.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Throttle defaults
	if cfg.Throttle.RequestsPerWindow == 0 {
		cfg.Throttle.RequestsPerWindow = DefaultRequestsPerWindow
	}
	if cfg.Throttle.Window == 0 {
		cfg.Throttle.Window = DefaultThrottleWindow
	}
	if cfg.Throttle.ExemptPathPrefix == "" {
		cfg.Throttle.ExemptPathPrefix = DefaultExemptPathPrefix
	}

	// Storage defaults
	if cfg.Usage.Storage.Backend == "" {
		cfg.Usage.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Usage.Storage.SQLite.Path == "" {
		cfg.Usage.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Usage.Storage.SQLite.Driver == "" {
		cfg.Usage.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Usage.Storage.SQLite.BusyTimeout == 0 {
		cfg.Usage.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Recorder defaults
	if cfg.Usage.Recorder.BufferSize == 0 {
		cfg.Usage.Recorder.BufferSize = DefaultRecorderBufferSize
	}
	if cfg.Usage.Recorder.WriteTimeout == 0 {
		cfg.Usage.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
