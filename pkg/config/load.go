package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is unmarshaled over the default configuration, so absent fields
// keep their defaults while explicit values win. The result is validated
// before being returned. The configuration is not modified by environment
// variables; use LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Parse YAML over the defaults
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// Validate
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention WARDEN_SECTION_FIELD (e.g., WARDEN_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	// First load from file (this already applies defaults)
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format WARDEN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("WARDEN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("WARDEN_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_SERVER_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}

	// Throttle overrides
	if val := os.Getenv("WARDEN_THROTTLE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Throttle.Enabled = b
		}
	}
	if val := os.Getenv("WARDEN_THROTTLE_REQUESTS_PER_WINDOW"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Throttle.RequestsPerWindow = i
		}
	}
	if val := os.Getenv("WARDEN_THROTTLE_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Throttle.Window = d
		}
	}
	if val := os.Getenv("WARDEN_THROTTLE_EXEMPT_PATH_PREFIX"); val != "" {
		cfg.Throttle.ExemptPathPrefix = val
	}
	if val := os.Getenv("WARDEN_THROTTLE_CLEANUP_SCHEDULE"); val != "" {
		cfg.Throttle.CleanupSchedule = val
	}

	// Usage storage overrides
	if val := os.Getenv("WARDEN_USAGE_STORAGE_BACKEND"); val != "" {
		cfg.Usage.Storage.Backend = val
	}
	if val := os.Getenv("WARDEN_USAGE_SQLITE_PATH"); val != "" {
		cfg.Usage.Storage.SQLite.Path = val
	}
	if val := os.Getenv("WARDEN_USAGE_SQLITE_DRIVER"); val != "" {
		cfg.Usage.Storage.SQLite.Driver = val
	}
	if val := os.Getenv("WARDEN_USAGE_SQLITE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Usage.Storage.SQLite.BusyTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_USAGE_RECORDER_BUFFER_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Usage.Recorder.BufferSize = i
		}
	}
	if val := os.Getenv("WARDEN_USAGE_RECORDER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Usage.Recorder.WriteTimeout = d
		}
	}

	// Logging overrides
	if val := os.Getenv("WARDEN_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("WARDEN_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Metrics overrides
	if val := os.Getenv("WARDEN_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("WARDEN_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}
}
