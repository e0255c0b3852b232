package usage

import (
	"context"
	"log/slog"
	"time"
)

// Evaluator computes monthly quota decisions for organizations by
// aggregating the usage event log against the tier limit table.
//
// Decisions are computed fresh on every call and never cached. Evaluation
// holds no locks across the storage round trip, so two concurrent requests
// may both observe "within limit" and jointly overshoot the ceiling by a
// small margin; that relaxation is accepted because the ceiling is derived
// from an append-only aggregate, not a decremented counter.
type Evaluator struct {
	store  Store
	limits *TierLimitTable
	logger *slog.Logger
	now    func() time.Time

	metrics *Metrics
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock overrides the evaluator's clock. Intended for tests.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithMetrics attaches Prometheus metrics to the evaluator.
func WithMetrics(m *Metrics) EvaluatorOption {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// NewEvaluator creates a quota evaluator over the given event store and
// tier limit table.
func NewEvaluator(store Store, limits *TierLimitTable, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:  store,
		limits: limits,
		logger: slog.Default().With("component", "usage.evaluator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckLimit evaluates whether an organization may consume one more unit of
// the given event type under its tier's monthly ceiling.
//
// Unmetered event types and unlimited ceilings short-circuit to a permissive
// decision without touching storage. If the store cannot be reached the
// decision defaults to allow: availability is prioritized over strict quota
// enforcement while the backing store is degraded, and the fallback is
// logged at a level distinguishable from ordinary denials.
func (e *Evaluator) CheckLimit(ctx context.Context, orgID string, eventType EventType, tier Tier) (Decision, error) {
	if orgID == "" {
		return Decision{}, ErrInvalidOrg
	}

	key, metered := LimitKeyFor(eventType)
	if !metered {
		return Decision{WithinLimit: true, Current: 0, Limit: Unlimited}, nil
	}

	limit := e.limits.LimitFor(tier, key)
	if limit == Unlimited {
		return Decision{WithinLimit: true, Current: 0, Limit: Unlimited}, nil
	}

	periodStart := monthStart(e.now().UTC())

	current, err := e.store.SumSince(ctx, orgID, eventType, periodStart)
	if err != nil {
		// Fail open. A degraded store must not block the caller's
		// operation; the gap in enforcement is logged, not swallowed.
		e.logger.Error("quota evaluation failed, defaulting to allow",
			"org_id", orgID,
			"event_type", string(eventType),
			"tier", string(tier),
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.quotaFallbacks.Inc()
		}
		return Decision{WithinLimit: true, Current: 0, Limit: Unlimited}, nil
	}

	// Strict less-than: a decision made exactly at the ceiling is denied.
	decision := Decision{
		WithinLimit: current < limit,
		Current:     current,
		Limit:       limit,
	}

	if e.metrics != nil {
		result := "allowed"
		if !decision.WithinLimit {
			result = "denied"
		}
		e.metrics.quotaChecks.WithLabelValues(string(eventType), string(tier), result).Inc()
	}

	if !decision.WithinLimit {
		e.logger.Warn("quota exceeded",
			"org_id", orgID,
			"event_type", string(eventType),
			"tier", string(tier),
			"current", current,
			"limit", limit,
		)
	}

	return decision, nil
}

// DimensionStatus is the per-dimension view returned by CheckAll.
type DimensionStatus struct {
	Current     int64  `json:"current"`
	Limit       int64  `json:"limit"`
	WithinLimit bool   `json:"within_limit"`
	Unit        string `json:"unit"`
}

// TokenStatus extends DimensionStatus with the input/output breakdown of
// the shared AI token ceiling.
type TokenStatus struct {
	DimensionStatus
	Breakdown struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"breakdown"`
}

// LimitsReport is the full quota picture for an organization.
type LimitsReport struct {
	OrgID        string          `json:"org_id"`
	Tier         Tier            `json:"tier"`
	CSVUploads   DimensionStatus `json:"csv_uploads"`
	CSVRows      DimensionStatus `json:"csv_rows"`
	Analyses     DimensionStatus `json:"analyses"`
	ChatMessages DimensionStatus `json:"chat_messages"`
	AITokens     TokenStatus     `json:"ai_tokens"`
	Period       string          `json:"period"`
}

// CheckAll evaluates every metered dimension for an organization and
// returns the combined report. AI tokens are reported as a single ceiling
// with an input/output breakdown.
func (e *Evaluator) CheckAll(ctx context.Context, orgID string, tier Tier) (*LimitsReport, error) {
	if orgID == "" {
		return nil, ErrInvalidOrg
	}

	report := &LimitsReport{
		OrgID:  orgID,
		Tier:   tier,
		Period: "current_month",
	}

	dims := []struct {
		eventType EventType
		unit      string
		target    *DimensionStatus
	}{
		{EventCSVUpload, "uploads", &report.CSVUploads},
		{EventCSVRowProcessed, "rows", &report.CSVRows},
		{EventAnalysisRun, "analyses", &report.Analyses},
		{EventChatMessage, "messages", &report.ChatMessages},
	}

	for _, dim := range dims {
		decision, err := e.CheckLimit(ctx, orgID, dim.eventType, tier)
		if err != nil {
			return nil, err
		}
		*dim.target = DimensionStatus{
			Current:     decision.Current,
			Limit:       decision.Limit,
			WithinLimit: decision.WithinLimit,
			Unit:        dim.unit,
		}
	}

	input, err := e.CheckLimit(ctx, orgID, EventAITokensInput, tier)
	if err != nil {
		return nil, err
	}
	output, err := e.CheckLimit(ctx, orgID, EventAITokensOutput, tier)
	if err != nil {
		return nil, err
	}

	report.AITokens.Current = input.Current + output.Current
	report.AITokens.Limit = input.Limit
	report.AITokens.WithinLimit = input.WithinLimit && output.WithinLimit
	report.AITokens.Unit = "tokens"
	report.AITokens.Breakdown.InputTokens = input.Current
	report.AITokens.Breakdown.OutputTokens = output.Current

	return report, nil
}

// QuotaState classifies an organization's overall quota position.
type QuotaState string

const (
	// StateOK means usage is comfortably within all ceilings.
	StateOK QuotaState = "ok"

	// StateApproaching means usage exceeds 80% of at least one finite ceiling.
	StateApproaching QuotaState = "approaching_limit"

	// StateOverLimit means at least one ceiling has been reached.
	StateOverLimit QuotaState = "over_limit"
)

// StatusReport is the quick quota status summary for an organization.
type StatusReport struct {
	OrgID   string     `json:"org_id"`
	Tier    Tier       `json:"tier"`
	Status  QuotaState `json:"status"`
	Message string     `json:"message"`
}

// QuotaStatus performs a quick status check over the key dimensions
// (uploads, analyses, chat messages) and classifies the organization as
// ok, approaching a limit (>80% of any finite ceiling), or over a limit.
func (e *Evaluator) QuotaStatus(ctx context.Context, orgID string, tier Tier) (*StatusReport, error) {
	if orgID == "" {
		return nil, ErrInvalidOrg
	}

	keyDims := []EventType{EventCSVUpload, EventAnalysisRun, EventChatMessage}

	anyOver := false
	anyApproaching := false
	for _, eventType := range keyDims {
		decision, err := e.CheckLimit(ctx, orgID, eventType, tier)
		if err != nil {
			return nil, err
		}
		if !decision.WithinLimit {
			anyOver = true
		}
		if decision.Limit != Unlimited && decision.Current*5 > decision.Limit*4 {
			anyApproaching = true
		}
	}

	report := &StatusReport{OrgID: orgID, Tier: tier}
	switch {
	case anyOver:
		report.Status = StateOverLimit
		report.Message = "You have exceeded one or more usage limits"
	case anyApproaching:
		report.Status = StateApproaching
		report.Message = "You are approaching usage limits (>80%)"
	default:
		report.Status = StateOK
		report.Message = "Usage is within limits"
	}

	return report, nil
}

// monthStart returns the first instant of t's calendar month in UTC.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
