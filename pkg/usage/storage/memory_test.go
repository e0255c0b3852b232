package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fathomdata/warden/pkg/usage"
)

func newEvent(orgID string, eventType usage.EventType, quantity int64, at time.Time) *usage.Event {
	return &usage.Event{
		ID:        fmt.Sprintf("ev-%s-%s-%d", orgID, eventType, at.UnixNano()),
		OrgID:     orgID,
		Type:      eventType,
		Quantity:  quantity,
		CreatedAt: at,
	}
}

// TestAppend_Validation verifies the shared event invariants are enforced
// before any write.
func TestAppend_Validation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event *usage.Event
	}{
		{"nil event", nil},
		{"empty id", &usage.Event{OrgID: "org-1", Type: usage.EventCSVUpload, Quantity: 1, CreatedAt: now}},
		{"empty org", &usage.Event{ID: "ev-1", Type: usage.EventCSVUpload, Quantity: 1, CreatedAt: now}},
		{"empty type", &usage.Event{ID: "ev-1", OrgID: "org-1", Quantity: 1, CreatedAt: now}},
		{"zero quantity", &usage.Event{ID: "ev-1", OrgID: "org-1", Type: usage.EventCSVUpload, Quantity: 0, CreatedAt: now}},
		{"negative quantity", &usage.Event{ID: "ev-1", OrgID: "org-1", Type: usage.EventCSVUpload, Quantity: -5, CreatedAt: now}},
		{"zero timestamp", &usage.Event{ID: "ev-1", OrgID: "org-1", Type: usage.EventCSVUpload, Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Append(ctx, tt.event); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	if store.Size() != 0 {
		t.Errorf("invalid events were stored: size %d", store.Size())
	}
}

// TestAppend_CopiesEvent verifies later caller mutations cannot reach the
// stored record.
func TestAppend_CopiesEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	event := newEvent("org-1", usage.EventCSVUpload, 1, now)
	event.Metadata = map[string]any{"filename": "a.csv"}
	if err := store.Append(ctx, event); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	event.Quantity = 9999
	event.Metadata["filename"] = "tampered.csv"

	events, err := store.ListSince(ctx, "org-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Quantity != 1 {
		t.Errorf("stored quantity mutated: %d", events[0].Quantity)
	}
	if events[0].Metadata["filename"] != "a.csv" {
		t.Errorf("stored metadata mutated: %v", events[0].Metadata)
	}
}

// TestSumSince_Filters verifies summation filters by org, type and time.
func TestSumSince_Filters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for _, e := range []*usage.Event{
		newEvent("org-1", usage.EventAITokensInput, 100, now.Add(-time.Hour)),
		newEvent("org-1", usage.EventAITokensInput, 200, now.Add(-time.Minute)),
		newEvent("org-1", usage.EventAITokensOutput, 400, now.Add(-time.Minute)),
		newEvent("org-2", usage.EventAITokensInput, 800, now.Add(-time.Minute)),
		newEvent("org-1", usage.EventAITokensInput, 1600, now.Add(-48*time.Hour)),
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	total, err := store.SumSince(ctx, "org-1", usage.EventAITokensInput, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SumSince failed: %v", err)
	}
	if total != 300 {
		t.Errorf("expected 300, got %d", total)
	}

	// The since bound is inclusive.
	total, err = store.SumSince(ctx, "org-1", usage.EventAITokensInput, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SumSince failed: %v", err)
	}
	if total != 300 {
		t.Errorf("expected inclusive boundary to count, got %d", total)
	}
}

// TestListSince_Ordering verifies events come back in creation time order
// regardless of insertion order.
func TestListSince_Ordering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{-time.Minute, -time.Hour, -30 * time.Minute} {
		if err := store.Append(ctx, newEvent("org-1", usage.EventCSVUpload, 1, now.Add(offset))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := store.ListSince(ctx, "org-1", now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.Before(events[i-1].CreatedAt) {
			t.Errorf("events out of order at index %d", i)
		}
	}
}

// TestClosedStore verifies every operation reports ErrClosed after Close.
func TestClosedStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.Append(ctx, newEvent("org-1", usage.EventCSVUpload, 1, now)); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after close: got %v, want ErrClosed", err)
	}
	if _, err := store.SumSince(ctx, "org-1", usage.EventCSVUpload, now); !errors.Is(err, ErrClosed) {
		t.Errorf("SumSince after close: got %v, want ErrClosed", err)
	}
	if _, err := store.ListSince(ctx, "org-1", now); !errors.Is(err, ErrClosed) {
		t.Errorf("ListSince after close: got %v, want ErrClosed", err)
	}
}
