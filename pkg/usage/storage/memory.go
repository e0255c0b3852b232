package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"fathomdata/warden/pkg/usage"
)

// MemoryStore implements usage.Store using an in-memory slice.
// It is the default backend for development and tests; all data is lost
// when the process exits. Like every Store it is append-only: there is no
// way to mutate or remove an event once written.
//
// MemoryStore is thread-safe using sync.RWMutex.
type MemoryStore struct {
	events []*usage.Event
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates a new in-memory usage event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append writes one event to the log.
func (m *MemoryStore) Append(ctx context.Context, event *usage.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	// Copy so later caller mutations cannot reach the stored record.
	stored := *event
	if event.Metadata != nil {
		stored.Metadata = make(map[string]any, len(event.Metadata))
		for k, v := range event.Metadata {
			stored.Metadata[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.events = append(m.events, &stored)
	return nil
}

// SumSince returns the summed quantity for an organization and event type
// since the given instant.
func (m *MemoryStore) SumSince(ctx context.Context, orgID string, eventType usage.EventType, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}

	var total int64
	for _, event := range m.events {
		if event.OrgID != orgID || event.Type != eventType {
			continue
		}
		if event.CreatedAt.Before(since) {
			continue
		}
		total += event.Quantity
	}
	return total, nil
}

// ListSince returns all events for an organization since the given instant,
// ordered by creation time ascending.
func (m *MemoryStore) ListSince(ctx context.Context, orgID string, since time.Time) ([]*usage.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var events []*usage.Event
	for _, event := range m.events {
		if event.OrgID != orgID {
			continue
		}
		if event.CreatedAt.Before(since) {
			continue
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	return events, nil
}

// Close marks the store closed. Subsequent operations return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Size returns the number of stored events. Useful for tests and monitoring.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
