package usage

import (
	"context"
	"time"
)

// TypeSummary aggregates one event type within a summary period.
type TypeSummary struct {
	// Count is the number of events of this type.
	Count int64 `json:"count"`

	// TotalQuantity is the summed quantity across those events.
	TotalQuantity int64 `json:"total_quantity"`

	// FirstSeen is the earliest event timestamp in the period.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is the latest event timestamp in the period.
	LastSeen time.Time `json:"last_seen"`
}

// Summary is the aggregated usage picture for an organization over a
// lookback period.
type Summary struct {
	OrgID       string                    `json:"org_id"`
	PeriodDays  int                       `json:"period_days"`
	TotalEvents int64                     `json:"total_events"`
	ByType      map[EventType]TypeSummary `json:"summary_by_type"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Summarize aggregates all events for an organization within the last
// lookbackDays, grouped by event type. An organization with no events in
// range yields a structurally complete summary with zero aggregates rather
// than an error.
func (e *Evaluator) Summarize(ctx context.Context, orgID string, lookbackDays int) (*Summary, error) {
	if orgID == "" {
		return nil, ErrInvalidOrg
	}
	if lookbackDays < 1 {
		lookbackDays = 30
	}

	now := e.now().UTC()
	since := now.Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	events, err := e.store.ListSince(ctx, orgID, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		OrgID:       orgID,
		PeriodDays:  lookbackDays,
		TotalEvents: int64(len(events)),
		ByType:      make(map[EventType]TypeSummary),
		GeneratedAt: now,
	}

	for _, event := range events {
		agg, seen := summary.ByType[event.Type]
		if !seen {
			agg.FirstSeen = event.CreatedAt
			agg.LastSeen = event.CreatedAt
		}

		agg.Count++
		agg.TotalQuantity += event.Quantity
		if event.CreatedAt.Before(agg.FirstSeen) {
			agg.FirstSeen = event.CreatedAt
		}
		if event.CreatedAt.After(agg.LastSeen) {
			agg.LastSeen = event.CreatedAt
		}

		summary.ByType[event.Type] = agg
	}

	return summary, nil
}
