package throttle

import (
	"sync"
	"time"
)

// WindowStore tracks request timestamps per client over a sliding window.
//
// Each client key owns an ordered sequence of admitted-request timestamps.
// Sequences are pruned to the window on every touch, so a key's sequence
// only ever contains timestamps within the window and in non-decreasing
// order. Memory is bounded by periodic Cleanup, which drops aged entries
// and removes keys left empty.
//
// # Thread Safety
//
// Mutations to a single key's sequence are serialized through a per-key
// mutex; operations on different keys proceed in parallel. The store-level
// mutex only guards the key map itself, so a Cleanup that removes an empty
// key and a concurrent Record for the same key are linearizable: the
// insertion is never lost.
type WindowStore struct {
	window  time.Duration
	mu      sync.Mutex
	clients map[ClientKey]*clientWindow
}

// clientWindow is one client's timestamp sequence with its own lock.
type clientWindow struct {
	mu    sync.Mutex
	times []time.Time

	// gone is set under mu when Cleanup unmaps this window. A Record that
	// raced the removal re-fetches instead of writing into the orphan.
	gone bool
}

// NewWindowStore creates a sliding window store with the given window
// duration. A zero or negative window defaults to one minute.
func NewWindowStore(window time.Duration) *WindowStore {
	if window <= 0 {
		window = time.Minute
	}
	return &WindowStore{
		window:  window,
		clients: make(map[ClientKey]*clientWindow),
	}
}

// Window returns the configured window duration.
func (s *WindowStore) Window() time.Duration {
	return s.window
}

// Record prunes the key's sequence to the window ending at now, appends
// now, and returns the resulting length. Measurement and bookkeeping happen
// in one pass to avoid iterating the sequence twice per request.
func (s *WindowStore) Record(key ClientKey, now time.Time) int {
	for {
		cw := s.getOrCreate(key)

		cw.mu.Lock()
		if cw.gone {
			// Lost a race with Cleanup; the map entry was removed after
			// we fetched it. Retry against a fresh window.
			cw.mu.Unlock()
			continue
		}

		cw.times = pruned(cw.times, now.Add(-s.window))
		cw.times = append(cw.times, now)
		n := len(cw.times)
		cw.mu.Unlock()
		return n
	}
}

// Count returns the number of timestamps within the window ending at now,
// without mutating state. Used for read-only inspection such as response
// headers and pre-admission checks.
func (s *WindowStore) Count(key ClientKey, now time.Time) int {
	s.mu.Lock()
	cw, ok := s.clients[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	cutoff := now.Add(-s.window)
	count := 0
	for _, ts := range cw.times {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Cleanup prunes every key's sequence to the window ending at now and
// removes keys left with an empty sequence. It returns the number of
// clients removed and the number of timestamps dropped.
//
// Cleanup must run periodically rather than per request; an interval of
// several window lengths amortizes its cost across many requests.
func (s *WindowStore) Cleanup(now time.Time) (removed, dropped int) {
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, cw := range s.clients {
		cw.mu.Lock()
		before := len(cw.times)
		cw.times = pruned(cw.times, cutoff)
		dropped += before - len(cw.times)
		if len(cw.times) == 0 {
			// Tombstone before unmapping so a Record that already holds a
			// reference retries instead of appending to the orphan.
			cw.gone = true
			delete(s.clients, key)
			removed++
		}
		cw.mu.Unlock()
	}

	return removed, dropped
}

// Len returns the number of clients currently tracked.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// getOrCreate returns the window for a key, creating it lazily on first use.
func (s *WindowStore) getOrCreate(key ClientKey) *clientWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	cw, ok := s.clients[key]
	if !ok {
		cw = &clientWindow{}
		s.clients[key] = cw
	}
	return cw
}

// pruned returns times filtered to entries strictly after cutoff, reusing
// the backing array. Timestamps arrive in non-decreasing order, so the
// survivors form a suffix.
func pruned(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	n := copy(times, times[idx:])
	return times[:n]
}
