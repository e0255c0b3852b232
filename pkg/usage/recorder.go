package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the usage recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing an event to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder appends usage events to the event store.
//
// Recording is always best-effort: a failed usage write must never fail the
// business operation it accompanies. A CSV upload that succeeds still
// returns success to the user even if its usage event is lost. Every
// failure path here logs and drops; nothing propagates to the caller.
//
// Events are enqueued to a buffered channel and drained by a background
// worker so callers never block on storage latency.
type Recorder struct {
	store   Store
	config  *RecorderConfig
	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics

	eventChan chan *Event
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides the recorder's clock. Intended for tests.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithRecorderMetrics attaches Prometheus metrics to the recorder.
func WithRecorderMetrics(m *Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a usage recorder over the given store and starts its
// background writer.
func NewRecorder(store Store, config *RecorderConfig, opts ...RecorderOption) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:     store,
		config:    config,
		logger:    slog.Default().With("component", "usage.recorder"),
		now:       time.Now,
		eventChan: make(chan *Event, config.AsyncBuffer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues one usage event for async persistence.
//
// Quantity values below 1 default to 1. An empty organization id is the one
// case that is dropped before enqueueing, since an event without a tenant
// can never be attributed.
func (r *Recorder) Record(ctx context.Context, orgID string, eventType EventType, quantity int64, metadata map[string]any) {
	if orgID == "" {
		r.logger.Warn("dropping usage event without org id",
			"event_type", string(eventType),
		)
		return
	}
	if quantity < 1 {
		quantity = 1
	}

	event := &Event{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Type:      eventType,
		Quantity:  quantity,
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}

	select {
	case r.eventChan <- event:
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping usage event",
			"org_id", orgID,
			"event_type", string(eventType),
		)
	default:
		// Buffer full. Dropping is preferable to blocking the request path.
		r.logger.Error("usage event buffer full, dropping event",
			"org_id", orgID,
			"event_type", string(eventType),
			"buffer_size", r.config.AsyncBuffer,
		)
		if r.metrics != nil {
			r.metrics.eventsDropped.Inc()
		}
	}
}

// RecordSync appends one usage event synchronously. Used by CLI tooling and
// tests that need the event visible immediately; the same best-effort
// contract applies, so failures are logged and returned but callers are
// expected to treat them as non-fatal.
func (r *Recorder) RecordSync(ctx context.Context, orgID string, eventType EventType, quantity int64, metadata map[string]any) error {
	if orgID == "" {
		return ErrInvalidOrg
	}
	if quantity < 1 {
		quantity = 1
	}

	event := &Event{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Type:      eventType,
		Quantity:  quantity,
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.Error("failed to record usage event",
			"org_id", orgID,
			"event_type", string(eventType),
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.eventsDropped.Inc()
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if r.metrics != nil {
		r.metrics.eventsRecorded.WithLabelValues(string(eventType)).Inc()
	}
	return nil
}

// Close drains the event channel and stops the background writer.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

// worker drains the event channel and writes events to the store.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.eventChan:
			r.writeEvent(event)

		case <-r.done:
			// Drain remaining events before exit.
			for {
				select {
				case event := <-r.eventChan:
					r.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

// writeEvent persists a single event, logging and dropping on failure.
func (r *Recorder) writeEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.Error("failed to persist usage event",
			"event_id", event.ID,
			"org_id", event.OrgID,
			"event_type", string(event.Type),
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.eventsDropped.Inc()
		}
		return
	}

	if r.metrics != nil {
		r.metrics.eventsRecorded.WithLabelValues(string(event.Type)).Inc()
	}

	r.logger.Debug("usage event recorded",
		"event_id", event.ID,
		"org_id", event.OrgID,
		"event_type", string(event.Type),
		"quantity", event.Quantity,
	)
}
