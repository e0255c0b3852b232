// Package usage provides tier-based monthly quota governance for tenants.
//
// # Overview
//
// The usage package is the long-term half of the two-layer throttle. It
// tracks resource consumption per organization as immutable events in an
// append-only log, and evaluates current-month consumption against the
// organization's subscription tier:
//
//   - Event recording (best-effort, async, never fails the caller)
//   - Quota evaluation (monthly ceilings, computed fresh per check)
//   - Usage summaries (per-type aggregates over a lookback window)
//
// # Tiers and ceilings
//
// Three tiers exist: trial, pilot and subscription. Ceilings are monthly
// per resource dimension; -1 means unlimited. An unknown tier name falls
// back to pilot, never to trial, so a data error cannot silently shrink a
// paying customer's quota.
//
// # Failure policy
//
// The package trades strict enforcement for availability: quota
// evaluation fails open when the store is unreachable, and event
// recording fails silent. Both paths log at error level so the degradation
// is visible without blocking tenants.
//
// # Usage
//
//	store, _ := storage.NewSQLiteStore(nil)
//	limits := usage.DefaultTierLimits()
//	evaluator := usage.NewEvaluator(store, limits)
//	recorder := usage.NewRecorder(store, nil)
//
//	decision, err := evaluator.CheckLimit(ctx, orgID, usage.EventChatMessage, tier)
//	if err == nil && !decision.WithinLimit {
//	    // Reject with an upgrade prompt; do not record the event.
//	}
//
//	recorder.Record(ctx, orgID, usage.EventChatMessage, 1, nil)
package usage
