package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateThrottle(&cfg.Throttle)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validateServer validates the HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.ListenAddress),
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must not be negative",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

// validateThrottle validates the rate limiter configuration.
func validateThrottle(cfg *ThrottleConfig) []FieldError {
	var errs []FieldError

	if cfg.RequestsPerWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "throttle.requests_per_window",
			Message: "must be positive",
		})
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{
			Field:   "throttle.window",
			Message: "must be positive",
		})
	}
	if cfg.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "throttle.cleanup_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.CleanupSchedule, err),
			})
		}
	}

	return errs
}

// validateUsage validates usage tracking configuration.
func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "usage.storage.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		switch cfg.Storage.SQLite.Driver {
		case "cgo", "pure":
		default:
			errs = append(errs, FieldError{
				Field:   "usage.storage.sqlite.driver",
				Message: fmt.Sprintf("unknown driver %q: must be \"cgo\" or \"pure\"", cfg.Storage.SQLite.Driver),
			})
		}
		if cfg.Storage.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "usage.storage.sqlite.busy_timeout",
				Message: "must not be negative",
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "usage.storage.backend",
			Message: fmt.Sprintf("unknown backend %q: must be \"sqlite\" or \"memory\"", cfg.Storage.Backend),
		})
	}

	if cfg.Recorder.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "usage.recorder.buffer_size",
			Message: "must be positive",
		})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "usage.recorder.write_timeout",
			Message: "must be positive",
		})
	}

	for tier, limits := range cfg.TierOverrides {
		switch tier {
		case "trial", "pilot", "subscription":
		default:
			errs = append(errs, FieldError{
				Field:   "usage.tier_overrides." + tier,
				Message: "unknown tier: must be trial, pilot, or subscription",
			})
		}
		for key, limit := range limits {
			if limit < -1 {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("usage.tier_overrides.%s.%s", tier, key),
					Message: "limit must be -1 (unlimited) or non-negative",
				})
			}
		}
	}

	return errs
}

// validateLogging validates the logging configuration.
func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q: must be debug, info, warn, or error", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q: must be json or text", cfg.Format),
		})
	}

	return errs
}

// validateMetrics validates the metrics configuration.
func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: fmt.Sprintf("invalid path %q: must start with /", cfg.Path),
		})
	}

	return errs
}
