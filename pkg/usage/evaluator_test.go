package usage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// failingStore implements Store and fails every operation. Used to
// exercise the fail-open path.
type failingStore struct{}

func (f *failingStore) Append(ctx context.Context, event *Event) error {
	return errors.New("store down")
}

func (f *failingStore) SumSince(ctx context.Context, orgID string, eventType EventType, since time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func (f *failingStore) ListSince(ctx context.Context, orgID string, since time.Time) ([]*Event, error) {
	return nil, errors.New("store down")
}

func (f *failingStore) Close() error { return nil }

// newTestEvaluator builds an evaluator over a fresh memory store with a
// fixed clock.
func newTestEvaluator(t *testing.T, now time.Time) (*Evaluator, *memStore) {
	t.Helper()
	store := newMemStore()
	evaluator := NewEvaluator(store, DefaultTierLimits(),
		WithClock(func() time.Time { return now }))
	return evaluator, store
}

// seedEvents appends count events of the given type for an org.
func seedEvents(t *testing.T, store *memStore, orgID string, eventType EventType, count int, quantity int64, at time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		err := store.Append(context.Background(), &Event{
			ID:        fmt.Sprintf("ev-%s-%d-%d", eventType, at.UnixNano(), i),
			OrgID:     orgID,
			Type:      eventType,
			Quantity:  quantity,
			CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}
}

// TestCheckLimit_CeilingBoundary verifies the strict less-than comparison
// at the ceiling: one below allows, exactly at denies.
func TestCheckLimit_CeilingBoundary(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Trial tier allows 5 CSV uploads per month.
	evaluator, store := newTestEvaluator(t, now)
	seedEvents(t, store, "org-1", EventCSVUpload, 4, 1, now.Add(-time.Hour))

	decision, err := evaluator.CheckLimit(ctx, "org-1", EventCSVUpload, TierTrial)
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if !decision.WithinLimit {
		t.Error("expected within limit at 4/5")
	}
	if decision.Current != 4 || decision.Limit != 5 {
		t.Errorf("expected 4/5, got %d/%d", decision.Current, decision.Limit)
	}

	seedEvents(t, store, "org-1", EventCSVUpload, 1, 1, now.Add(-time.Minute))

	decision, err = evaluator.CheckLimit(ctx, "org-1", EventCSVUpload, TierTrial)
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if decision.WithinLimit {
		t.Error("expected denial at exactly 5/5")
	}
}

// TestCheckLimit_MonthBoundary verifies that only events from the current
// UTC calendar month count against the ceiling.
func TestCheckLimit_MonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	ctx := context.Background()

	evaluator, store := newTestEvaluator(t, now)

	// Last instant of February: outside the period.
	seedEvents(t, store, "org-1", EventCSVUpload, 5,
		1, time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC))
	// First instant of March: inside.
	seedEvents(t, store, "org-1", EventCSVUpload, 1,
		1, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	decision, err := evaluator.CheckLimit(ctx, "org-1", EventCSVUpload, TierTrial)
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if decision.Current != 1 {
		t.Errorf("expected only the March event to count, got %d", decision.Current)
	}
	if !decision.WithinLimit {
		t.Error("expected within limit after month rollover")
	}
}

// TestCheckLimit_UnmeteredType verifies unmapped event types pass without
// touching storage.
func TestCheckLimit_UnmeteredType(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	evaluator := NewEvaluator(&failingStore{}, DefaultTierLimits(),
		WithClock(func() time.Time { return now }))

	decision, err := evaluator.CheckLimit(context.Background(), "org-1", EventExportPDF, TierTrial)
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if !decision.WithinLimit || decision.Limit != Unlimited {
		t.Errorf("expected permissive decision for unmetered type, got %+v", decision)
	}
}

// TestCheckLimit_UnlimitedTier verifies the subscription tier never denies.
func TestCheckLimit_UnlimitedTier(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	evaluator, store := newTestEvaluator(t, now)
	seedEvents(t, store, "org-1", EventCSVUpload, 100, 1, now.Add(-time.Hour))

	decision, err := evaluator.CheckLimit(context.Background(), "org-1", EventCSVUpload, TierSubscription)
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if !decision.WithinLimit || decision.Limit != Unlimited {
		t.Errorf("expected unlimited decision, got %+v", decision)
	}
}

// TestCheckLimit_FailOpen verifies a storage failure yields a permissive
// decision rather than an error.
func TestCheckLimit_FailOpen(t *testing.T) {
	evaluator := NewEvaluator(&failingStore{}, DefaultTierLimits())

	decision, err := evaluator.CheckLimit(context.Background(), "org-1", EventCSVUpload, TierTrial)
	if err != nil {
		t.Fatalf("expected fail-open, got error: %v", err)
	}
	if !decision.WithinLimit {
		t.Error("expected allow when store is unreachable")
	}
	if decision.Current != 0 || decision.Limit != Unlimited {
		t.Errorf("expected neutral fallback decision, got %+v", decision)
	}
}

// TestCheckLimit_EmptyOrg verifies the empty org id is rejected.
func TestCheckLimit_EmptyOrg(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	evaluator, _ := newTestEvaluator(t, now)

	_, err := evaluator.CheckLimit(context.Background(), "", EventCSVUpload, TierTrial)
	if !errors.Is(err, ErrInvalidOrg) {
		t.Errorf("expected ErrInvalidOrg, got %v", err)
	}
}

// TestCheckLimit_UnknownTierFallsBackToPilot verifies a bad tier value
// evaluates against pilot ceilings.
func TestCheckLimit_UnknownTierFallsBackToPilot(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	evaluator, store := newTestEvaluator(t, now)
	// 10 uploads would exceed trial (5) but not pilot (50).
	seedEvents(t, store, "org-1", EventCSVUpload, 10, 1, now.Add(-time.Hour))

	decision, err := evaluator.CheckLimit(context.Background(), "org-1", EventCSVUpload, Tier("enterprise"))
	if err != nil {
		t.Fatalf("CheckLimit failed: %v", err)
	}
	if !decision.WithinLimit || decision.Limit != 50 {
		t.Errorf("expected pilot ceilings for unknown tier, got %+v", decision)
	}
}

// TestQuotaStatus_ApproachingBoundary verifies the strict >80% threshold:
// exactly 80% is still ok.
func TestQuotaStatus_ApproachingBoundary(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Trial allows 5 uploads; 4 is exactly 80%.
	evaluator, store := newTestEvaluator(t, now)
	seedEvents(t, store, "org-1", EventCSVUpload, 4, 1, now.Add(-time.Hour))

	report, err := evaluator.QuotaStatus(ctx, "org-1", TierTrial)
	if err != nil {
		t.Fatalf("QuotaStatus failed: %v", err)
	}
	if report.Status != StateOK {
		t.Errorf("expected ok at exactly 80%%, got %s", report.Status)
	}

	// 41 of 50 chat messages on trial crosses 80%.
	evaluator2, store2 := newTestEvaluator(t, now)
	seedEvents(t, store2, "org-2", EventChatMessage, 41, 1, now.Add(-time.Hour))

	report, err = evaluator2.QuotaStatus(ctx, "org-2", TierTrial)
	if err != nil {
		t.Fatalf("QuotaStatus failed: %v", err)
	}
	if report.Status != StateApproaching {
		t.Errorf("expected approaching_limit at 41/50, got %s", report.Status)
	}
}

// TestCheckAll_TokenBreakdown verifies the shared AI token ceiling reports
// input and output separately.
func TestCheckAll_TokenBreakdown(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	evaluator, store := newTestEvaluator(t, now)
	seedEvents(t, store, "org-1", EventAITokensInput, 1, 700, now.Add(-time.Hour))
	seedEvents(t, store, "org-1", EventAITokensOutput, 1, 300, now.Add(-time.Hour))

	report, err := evaluator.CheckAll(context.Background(), "org-1", TierTrial)
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}
	if report.AITokens.Current != 1000 {
		t.Errorf("expected combined token count 1000, got %d", report.AITokens.Current)
	}
	if report.AITokens.Breakdown.InputTokens != 700 || report.AITokens.Breakdown.OutputTokens != 300 {
		t.Errorf("unexpected breakdown: %+v", report.AITokens.Breakdown)
	}
	if report.AITokens.Limit != 100000 {
		t.Errorf("expected trial token ceiling 100000, got %d", report.AITokens.Limit)
	}
}

// TestSummarize_Lookback verifies the lookback window and the zero-usage
// shape for unknown organizations.
func TestSummarize_Lookback(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	evaluator, store := newTestEvaluator(t, now)
	seedEvents(t, store, "org-1", EventCSVUpload, 2, 1, now.Add(-24*time.Hour))
	seedEvents(t, store, "org-1", EventCSVUpload, 3, 1, now.Add(-40*24*time.Hour))

	summary, err := evaluator.Summarize(ctx, "org-1", 30)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalEvents != 2 {
		t.Errorf("expected 2 events within 30 days, got %d", summary.TotalEvents)
	}
	if agg := summary.ByType[EventCSVUpload]; agg.Count != 2 || agg.TotalQuantity != 2 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}

	// Unknown org yields an empty but structurally complete summary.
	summary, err = evaluator.Summarize(ctx, "org-unknown", 30)
	if err != nil {
		t.Fatalf("Summarize failed for unknown org: %v", err)
	}
	if summary.TotalEvents != 0 || len(summary.ByType) != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}

	// A non-positive lookback falls back to the 30 day default.
	summary, err = evaluator.Summarize(ctx, "org-1", 0)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.PeriodDays != 30 {
		t.Errorf("expected default lookback of 30 days, got %d", summary.PeriodDays)
	}
}
