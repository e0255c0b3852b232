package usage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is a minimal in-process Store for tests in this package. The
// storage subpackage ships the real backends; tests here use a local fake
// so the package under test stays free of its own implementations.
type memStore struct {
	mu     sync.Mutex
	events []*Event
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) Append(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *event
	m.events = append(m.events, &stored)
	return nil
}

func (m *memStore) SumSince(ctx context.Context, orgID string, eventType EventType, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, event := range m.events {
		if event.OrgID == orgID && event.Type == eventType && !event.CreatedAt.Before(since) {
			total += event.Quantity
		}
	}
	return total, nil
}

func (m *memStore) ListSince(ctx context.Context, orgID string, since time.Time) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Event
	for _, event := range m.events {
		if event.OrgID == orgID && !event.CreatedAt.Before(since) {
			matched = append(matched, event)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *memStore) Close() error { return nil }

// size returns the number of stored events.
func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
