// Package throttle implements per-client request rate limiting over an
// in-memory sliding window.
//
// # Overview
//
// Each client is identified by a stable ClientKey derived from, in order
// of preference, an authenticated user ID, the first X-Forwarded-For hop,
// or the connection's remote address. Request timestamps are tracked per
// key; an admission check compares the number of timestamps inside the
// trailing window against a configurable ceiling.
//
// A denied request never consumes a slot. The store is only mutated when
// a request is admitted, so a client at the limit can retry as soon as
// its oldest recorded request ages past the window boundary.
//
// # Cleanup
//
// Entries are pruned lazily whenever a key is touched. A Cleaner runs on
// a cron schedule to sweep keys whose clients have gone idle, bounding
// memory without affecting admission correctness.
//
// # Usage
//
//	store := throttle.NewWindowStore(time.Minute)
//	limiter := throttle.NewLimiter(throttle.DefaultConfig(), store)
//
//	d := limiter.Admit(throttle.Identify(userID, xff, remoteAddr), time.Now())
//	if !d.Allowed {
//		// reject with Retry-After: d.RetryAfter
//	}
package throttle
