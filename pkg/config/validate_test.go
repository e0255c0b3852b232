package config

import (
	"strings"
	"testing"
)

// TestValidate_DefaultsAreValid verifies the default configuration passes
// validation unchanged.
func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

// TestValidate_FieldErrors exercises individual invalid fields.
func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "" },
			wantField: "server.listen_address",
		},
		{
			name:      "listen address without port",
			mutate:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name:      "non-positive requests per window",
			mutate:    func(c *Config) { c.Throttle.RequestsPerWindow = 0 },
			wantField: "throttle.requests_per_window",
		},
		{
			name:      "negative window",
			mutate:    func(c *Config) { c.Throttle.Window = -1 },
			wantField: "throttle.window",
		},
		{
			name:      "bad cron schedule",
			mutate:    func(c *Config) { c.Throttle.CleanupSchedule = "every five minutes" },
			wantField: "throttle.cleanup_schedule",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Usage.Storage.Backend = "postgres" },
			wantField: "usage.storage.backend",
		},
		{
			name:      "empty sqlite path",
			mutate:    func(c *Config) { c.Usage.Storage.SQLite.Path = "" },
			wantField: "usage.storage.sqlite.path",
		},
		{
			name:      "unknown sqlite driver",
			mutate:    func(c *Config) { c.Usage.Storage.SQLite.Driver = "odbc" },
			wantField: "usage.storage.sqlite.driver",
		},
		{
			name:      "non-positive recorder buffer",
			mutate:    func(c *Config) { c.Usage.Recorder.BufferSize = 0 },
			wantField: "usage.recorder.buffer_size",
		},
		{
			name: "unknown tier in overrides",
			mutate: func(c *Config) {
				c.Usage.TierOverrides = map[string]map[string]int64{"platinum": {}}
			},
			wantField: "usage.tier_overrides.platinum",
		},
		{
			name: "override below -1",
			mutate: func(c *Config) {
				c.Usage.TierOverrides = map[string]map[string]int64{
					"trial": {"csv_uploads_per_month": -2},
				}
			},
			wantField: "usage.tier_overrides.trial.csv_uploads_per_month",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:      "unknown log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantField: "logging.format",
		},
		{
			name:      "metrics path without slash",
			mutate:    func(c *Config) { c.Metrics.Path = "metrics" },
			wantField: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantField, err)
			}
		})
	}
}

// TestValidate_CollectsAllErrors verifies multiple failures are reported
// together.
func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.ListenAddress = ""
	cfg.Throttle.RequestsPerWindow = -1
	cfg.Logging.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

// TestValidate_MetricsPathIgnoredWhenDisabled verifies path checks only
// apply when metrics are served.
func TestValidate_MetricsPathIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = "whatever"

	if err := Validate(cfg); err != nil {
		t.Errorf("expected no error with metrics disabled, got: %v", err)
	}
}
