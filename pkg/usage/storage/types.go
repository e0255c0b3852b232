package storage

import (
	"errors"
	"fmt"

	"fathomdata/warden/pkg/usage"
)

// Every backend implements the usage.Store interface.
var (
	_ usage.Store = (*MemoryStore)(nil)
	_ usage.Store = (*SQLiteStore)(nil)
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("usage event store is closed")

// validateEvent checks the invariants shared by every backend before a write.
func validateEvent(event *usage.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if event.OrgID == "" {
		return fmt.Errorf("org id cannot be empty")
	}
	if event.Type == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if event.Quantity < 1 {
		return fmt.Errorf("quantity must be >= 1, got %d", event.Quantity)
	}
	if event.CreatedAt.IsZero() {
		return fmt.Errorf("created_at cannot be zero")
	}
	return nil
}
