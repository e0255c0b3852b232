package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner periodically sweeps fully aged-out client windows from a window
// store so long-idle clients do not accumulate unbounded map entries.
// It runs on a cron schedule (e.g. every 5 minutes) using cron syntax.
//
// Cleanup is an optimization only: Count and Record already prune on touch,
// so correctness of admission decisions never depends on the sweep running.
type Cleaner struct {
	store    *WindowStore
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	metrics  *Metrics
	running  bool
}

// NewCleaner creates a cleaner for the given store. An empty schedule
// disables the cleaner.
func NewCleaner(store *WindowStore, schedule string) *Cleaner {
	return &Cleaner{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "throttle.cleaner"),
	}
}

// WithMetrics attaches Prometheus metrics to the cleaner and returns it.
func (c *Cleaner) WithMetrics(m *Metrics) *Cleaner {
	c.metrics = m
	return c
}

// Start begins scheduled cleanup based on the cron expression.
//
// Common cron expressions:
//   - "*/5 * * * *"  - Every 5 minutes
//   - "*/10 * * * *" - Every 10 minutes
//   - "0 * * * *"    - Hourly
//
// If the schedule is empty, Start does nothing.
func (c *Cleaner) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == "" {
		c.logger.Info("cleanup schedule not configured, skipping cleaner")
		return nil
	}

	// Validate cron expression
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		c.runCleanup()
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	c.cron.Start()
	c.running = true

	c.logger.Info("throttle cleaner started",
		"schedule", c.schedule,
		"window", c.store.Window().String(),
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return nil
}

// runCleanup executes one cleanup cycle.
func (c *Cleaner) runCleanup() {
	start := time.Now()
	removed, dropped := c.store.Cleanup(start)

	if c.metrics != nil {
		c.metrics.cleanupRuns.Inc()
		c.metrics.cleanupRemoved.Add(float64(removed))
	}

	if removed > 0 || dropped > 0 {
		c.logger.Info("throttle cleanup completed",
			"clients_removed", removed,
			"entries_dropped", dropped,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		c.logger.Debug("throttle cleanup completed, nothing to remove")
	}
}

// Stop stops the cleaner and waits for any running cleanup to complete.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron != nil && c.running {
		ctx := c.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		c.running = false
		c.logger.Info("throttle cleaner stopped")
	}
}

// IsRunning returns true if the cleaner is running.
func (c *Cleaner) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
