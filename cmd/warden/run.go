package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fathomdata/warden/pkg/cli"
	"fathomdata/warden/pkg/config"
	"fathomdata/warden/pkg/server"
	"fathomdata/warden/pkg/throttle"
	"fathomdata/warden/pkg/usage"
	"fathomdata/warden/pkg/usage/storage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Warden admission server",
	Long: `Start the Warden admission server with the specified configuration.

The server throttles incoming requests per client, records usage events to
the append-only event log, and answers quota queries against tier limits.

Examples:
  # Start with default config
  warden run

  # Start with custom config
  warden run --config /etc/warden/config.yaml

  # Override listen address
  warden run --listen 0.0.0.0:8080

  # Validate config without starting server
  warden run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	slog.SetDefault(buildLogger(&cfg.Logging))

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Print startup banner
	printBanner(cfg)

	// Usage event store
	slog.Info("initializing usage store", "backend", cfg.Usage.Storage.Backend)
	store, err := buildStore(&cfg.Usage.Storage)
	if err != nil {
		return fmt.Errorf("failed to create usage store: %w", err)
	}
	defer store.Close()
	fmt.Println("✓ Usage store initialized")

	var usageMetrics *usage.Metrics
	var throttleMetrics *throttle.Metrics
	if cfg.Metrics.Enabled {
		usageMetrics = usage.NewMetrics()
	}

	// Quota evaluator with per-tier ceilings
	limits := usage.NewTierLimitTable(tierOverrides(cfg.Usage.TierOverrides))
	evaluatorOpts := []usage.EvaluatorOption{}
	if usageMetrics != nil {
		evaluatorOpts = append(evaluatorOpts, usage.WithMetrics(usageMetrics))
	}
	evaluator := usage.NewEvaluator(store, limits, evaluatorOpts...)

	// Asynchronous usage recorder
	recorderConfig := &usage.RecorderConfig{
		AsyncBuffer:  cfg.Usage.Recorder.BufferSize,
		WriteTimeout: cfg.Usage.Recorder.WriteTimeout,
	}
	recorderOpts := []usage.RecorderOption{}
	if usageMetrics != nil {
		recorderOpts = append(recorderOpts, usage.WithRecorderMetrics(usageMetrics))
	}
	recorder := usage.NewRecorder(store, recorderConfig, recorderOpts...)
	defer recorder.Close()

	// Request throttle with background window cleanup
	windowStore := throttle.NewWindowStore(cfg.Throttle.Window)
	if cfg.Metrics.Enabled {
		throttleMetrics = throttle.NewMetrics(windowStore)
	}
	limiter := throttle.NewLimiter(throttle.Config{
		RequestsPerWindow: cfg.Throttle.RequestsPerWindow,
		Window:            cfg.Throttle.Window,
		ExemptPathPrefix:  cfg.Throttle.ExemptPathPrefix,
		CleanupSchedule:   cfg.Throttle.CleanupSchedule,
	}, windowStore)
	if throttleMetrics != nil {
		limiter.WithMetrics(throttleMetrics)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Throttle.Enabled && cfg.Throttle.CleanupSchedule != "" {
		cleaner := throttle.NewCleaner(windowStore, cfg.Throttle.CleanupSchedule)
		if throttleMetrics != nil {
			cleaner.WithMetrics(throttleMetrics)
		}
		if err := cleaner.Start(ctx); err != nil {
			slog.Warn("failed to start throttle cleaner", "error", err)
		} else {
			defer cleaner.Stop()
		}
	}

	// Watch the config file so the request ceiling can change without a
	// restart. Only hot-reloadable fields take effect; everything else
	// waits for the next start.
	watcher, err := config.NewWatcher(cfgFile, slog.Default())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			err := watcher.Watch(ctx, func(newCfg *config.Config) {
				limiter.SetLimit(newCfg.Throttle.RequestsPerWindow)
				slog.Info("throttle limit updated",
					"requests_per_window", newCfg.Throttle.RequestsPerWindow,
				)
			})
			if err != nil {
				slog.Warn("config watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Create HTTP server
	slog.Info("creating HTTP server")
	srv := server.NewServer(cfg, limiter, evaluator, recorder, server.WithVersion(Version))

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", cfg.Server.ListenAddress)
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/v1/health\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for shutdown signal or server error
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// buildLogger constructs the process logger from the logging section.
func buildLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// buildStore constructs the usage event store selected by the config.
func buildStore(cfg *config.StorageConfig) (usage.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		driver := storage.DriverCGO
		if cfg.SQLite.Driver == "pure" {
			driver = storage.DriverPure
		}
		return storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:               cfg.SQLite.Path,
			Driver:             driver,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported usage storage backend: %s", cfg.Backend)
	}
}

// tierOverrides converts the config override map to the typed form the
// tier limit table expects.
func tierOverrides(raw map[string]map[string]int64) map[usage.Tier]map[usage.LimitKey]int64 {
	if len(raw) == 0 {
		return nil
	}
	overrides := make(map[usage.Tier]map[usage.LimitKey]int64, len(raw))
	for tier, limits := range raw {
		typed := make(map[usage.LimitKey]int64, len(limits))
		for key, value := range limits {
			typed[usage.LimitKey(key)] = value
		}
		overrides[usage.Tier(tier)] = typed
	}
	return overrides
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Warden v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	if cfg.Throttle.Enabled {
		slog.Debug("throttle enabled",
			"requests_per_window", cfg.Throttle.RequestsPerWindow,
			"window", cfg.Throttle.Window.String(),
		)
	}
	slog.Debug("usage storage", "backend", cfg.Usage.Storage.Backend)
}
