package throttle

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestWindowStore_RecordAndCount verifies basic counting within the window.
func TestWindowStore_RecordAndCount(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	key := ClientKey("user:alice")

	for i := 1; i <= 5; i++ {
		got := store.Record(key, now.Add(time.Duration(i)*time.Second))
		if got != i {
			t.Fatalf("Record %d: expected count %d, got %d", i, i, got)
		}
	}

	if count := store.Count(key, now.Add(10*time.Second)); count != 5 {
		t.Errorf("expected count 5, got %d", count)
	}
}

// TestWindowStore_Aging verifies that entries older than the window are
// excluded from counts and pruned on touch.
func TestWindowStore_Aging(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	key := ClientKey("ip:10.0.0.1")

	store.Record(key, now)
	store.Record(key, now.Add(30*time.Second))

	// Both inside the window
	if count := store.Count(key, now.Add(59*time.Second)); count != 2 {
		t.Errorf("at 59s: expected 2, got %d", count)
	}

	// First entry is exactly window-old at 60s and ages out
	if count := store.Count(key, now.Add(61*time.Second)); count != 1 {
		t.Errorf("at 61s: expected 1, got %d", count)
	}

	// Everything aged out
	if count := store.Count(key, now.Add(2*time.Minute)); count != 0 {
		t.Errorf("at 2m: expected 0, got %d", count)
	}
}

// TestWindowStore_CountIsReadOnly verifies that Count never adds entries.
func TestWindowStore_CountIsReadOnly(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Now()
	key := ClientKey("user:bob")

	for i := 0; i < 10; i++ {
		store.Count(key, now)
	}
	if count := store.Count(key, now); count != 0 {
		t.Errorf("expected 0 after repeated counts, got %d", count)
	}

	store.Record(key, now)
	for i := 0; i < 10; i++ {
		store.Count(key, now)
	}
	if count := store.Count(key, now); count != 1 {
		t.Errorf("expected 1 after repeated counts, got %d", count)
	}
}

// TestWindowStore_IndependentKeys verifies per-key isolation.
func TestWindowStore_IndependentKeys(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Now()

	store.Record(ClientKey("user:a"), now)
	store.Record(ClientKey("user:a"), now)
	store.Record(ClientKey("user:b"), now)

	if count := store.Count(ClientKey("user:a"), now); count != 2 {
		t.Errorf("key a: expected 2, got %d", count)
	}
	if count := store.Count(ClientKey("user:b"), now); count != 1 {
		t.Errorf("key b: expected 1, got %d", count)
	}
	if count := store.Count(ClientKey("user:c"), now); count != 0 {
		t.Errorf("key c: expected 0, got %d", count)
	}
}

// TestWindowStore_Cleanup verifies that idle keys are removed and active
// keys retained.
func TestWindowStore_Cleanup(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	store.Record(ClientKey("user:idle"), now)
	store.Record(ClientKey("user:active"), now)
	store.Record(ClientKey("user:active"), now.Add(5*time.Minute))

	clients, dropped := store.Cleanup(now.Add(5*time.Minute + time.Second))
	if clients != 1 {
		t.Errorf("expected 1 client removed, got %d", clients)
	}
	if dropped != 1 {
		t.Errorf("expected 1 entry dropped from removed client, got %d", dropped)
	}

	if store.Len() != 1 {
		t.Errorf("expected 1 tracked client, got %d", store.Len())
	}
	if count := store.Count(ClientKey("user:active"), now.Add(5*time.Minute+time.Second)); count != 1 {
		t.Errorf("active key: expected 1, got %d", count)
	}
}

// TestWindowStore_CleanupEmptyStore verifies cleanup on an empty store is a no-op.
func TestWindowStore_CleanupEmptyStore(t *testing.T) {
	store := NewWindowStore(time.Minute)
	clients, dropped := store.Cleanup(time.Now())
	if clients != 0 || dropped != 0 {
		t.Errorf("expected (0, 0), got (%d, %d)", clients, dropped)
	}
}

// TestWindowStore_RecordDuringCleanup exercises the race between Record
// and Cleanup: no admitted request may lose its recorded timestamp.
func TestWindowStore_RecordDuringCleanup(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 200

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := ClientKey(fmt.Sprintf("user:w%d", w))
			for i := 0; i < perWorker; i++ {
				store.Record(key, now)
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.Cleanup(now)
		}
	}()

	wg.Wait()

	for w := 0; w < workers; w++ {
		key := ClientKey(fmt.Sprintf("user:w%d", w))
		if count := store.Count(key, now); count != perWorker {
			t.Errorf("key %s: expected %d recorded entries, got %d", key, perWorker, count)
		}
	}
}

// TestWindowStore_ConcurrentSameKey verifies that concurrent records on a
// single key are all retained.
func TestWindowStore_ConcurrentSameKey(t *testing.T) {
	store := NewWindowStore(time.Minute)
	now := time.Now()
	key := ClientKey("user:shared")

	var wg sync.WaitGroup
	const goroutines = 16
	const perGoroutine = 50

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				store.Record(key, now)
			}
		}()
	}
	wg.Wait()

	if count := store.Count(key, now); count != goroutines*perGoroutine {
		t.Errorf("expected %d, got %d", goroutines*perGoroutine, count)
	}
}
