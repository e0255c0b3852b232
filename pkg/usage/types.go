package usage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventType identifies a metered resource consumption event.
// Event types are stable string identifiers shared with the persisted log;
// renaming one is a breaking change for historical aggregates.
type EventType string

const (
	// EventCSVUpload is recorded once per uploaded CSV file.
	EventCSVUpload EventType = "csv_upload"

	// EventCSVRowProcessed is recorded per row parsed from an upload.
	EventCSVRowProcessed EventType = "csv_row_processed"

	// EventAnalysisRun is recorded once per analysis pipeline run.
	EventAnalysisRun EventType = "analysis_run"

	// EventAnalyzerExecution is recorded per individual analyzer within a run.
	EventAnalyzerExecution EventType = "analyzer_execution"

	// EventChatMessage is recorded once per AI chat message sent.
	EventChatMessage EventType = "chat_message"

	// EventAITokensInput is recorded with the prompt token count of a chat call.
	EventAITokensInput EventType = "ai_tokens_input"

	// EventAITokensOutput is recorded with the completion token count of a chat call.
	EventAITokensOutput EventType = "ai_tokens_output"

	// EventMappingProfileCreated is recorded when a field-mapping profile is saved.
	EventMappingProfileCreated EventType = "mapping_profile_created"

	// EventMappingProfileUsed is recorded when a saved profile is applied.
	EventMappingProfileUsed EventType = "mapping_profile_used"

	// EventExportPDF is recorded per PDF export.
	EventExportPDF EventType = "export_pdf"

	// EventExportCSV is recorded per CSV export.
	EventExportCSV EventType = "export_csv"
)

// EventTypes lists every known event type in declaration order.
func EventTypes() []EventType {
	return []EventType{
		EventCSVUpload,
		EventCSVRowProcessed,
		EventAnalysisRun,
		EventAnalyzerExecution,
		EventChatMessage,
		EventAITokensInput,
		EventAITokensOutput,
		EventMappingProfileCreated,
		EventMappingProfileUsed,
		EventExportPDF,
		EventExportCSV,
	}
}

// LimitKey names a column of the tier limit table.
type LimitKey string

const (
	// LimitCSVUploads caps CSV uploads per calendar month.
	LimitCSVUploads LimitKey = "csv_uploads_per_month"

	// LimitCSVRows caps processed CSV rows per calendar month.
	LimitCSVRows LimitKey = "csv_rows_per_month"

	// LimitAnalyses caps analysis runs per calendar month.
	LimitAnalyses LimitKey = "analyses_per_month"

	// LimitChatMessages caps chat messages per calendar month.
	LimitChatMessages LimitKey = "chat_messages_per_month"

	// LimitAITokens caps AI tokens per calendar month. Input and output
	// tokens draw from this single shared ceiling.
	LimitAITokens LimitKey = "ai_tokens_per_month"

	// LimitMappingProfiles caps the total number of mapping profiles.
	LimitMappingProfiles LimitKey = "mapping_profiles"
)

// LimitKeyFor maps an event type to the limit key governing it.
// The second return value reports whether the event type is metered at all.
// Callers must treat an unmapped type as unregulated rather than blocked.
func LimitKeyFor(eventType EventType) (LimitKey, bool) {
	switch eventType {
	case EventCSVUpload:
		return LimitCSVUploads, true
	case EventCSVRowProcessed:
		return LimitCSVRows, true
	case EventAnalysisRun:
		return LimitAnalyses, true
	case EventChatMessage:
		return LimitChatMessages, true
	case EventAITokensInput, EventAITokensOutput:
		// Input and output share one monthly token ceiling.
		return LimitAITokens, true
	case EventMappingProfileCreated:
		return LimitMappingProfiles, true
	default:
		// analyzer_execution, mapping_profile_used, export_pdf, export_csv
		// and anything unknown are tracked but unmetered.
		return "", false
	}
}

// Tier is a named subscription level determining monthly resource ceilings.
type Tier string

const (
	// TierTrial is the evaluation tier with the tightest ceilings.
	TierTrial Tier = "trial"

	// TierPilot is the default paid pilot tier.
	TierPilot Tier = "pilot"

	// TierSubscription is the full subscription tier; all ceilings unlimited.
	TierSubscription Tier = "subscription"
)

// ParseTier normalizes a tier name. Unknown names fall back to pilot, never
// to trial: a data error on a paying customer's record must not silently
// under-provision them.
func ParseTier(name string) Tier {
	switch Tier(name) {
	case TierTrial, TierPilot, TierSubscription:
		return Tier(name)
	default:
		return TierPilot
	}
}

// Unlimited is the ceiling value meaning no monthly cap.
const Unlimited int64 = -1

// Event is one immutable record of resource consumption. Events are created
// exactly once, never mutated or deleted; the store they land in is an
// append-only log retained for billing and audit.
type Event struct {
	// ID is a UUID assigned at creation.
	ID string

	// OrgID is the organization (tenant) that consumed the resource.
	OrgID string

	// Type is the consumed resource dimension.
	Type EventType

	// Quantity is the number of units consumed; always >= 1.
	Quantity int64

	// Metadata carries arbitrary context about the event.
	Metadata map[string]any

	// CreatedAt is the UTC creation timestamp.
	CreatedAt time.Time
}

// Store is the append-only persisted log of usage events, implemented by
// the backends in the storage subpackage.
//
// A Store never exposes update or delete operations: events are immutable
// once written and are retained indefinitely for billing and audit. The
// store is the coordination point across process instances; all monthly
// quota arithmetic is derived from it rather than from decremented counters.
type Store interface {
	// Append writes one event to the log. The event's ID, OrgID, Type and
	// CreatedAt must be populated by the caller.
	Append(ctx context.Context, event *Event) error

	// SumSince returns the summed quantity of all events for an organization
	// and event type with CreatedAt >= since.
	SumSince(ctx context.Context, orgID string, eventType EventType, since time.Time) (int64, error)

	// ListSince returns all events for an organization with CreatedAt >= since,
	// ordered by creation time ascending.
	ListSince(ctx context.Context, orgID string, since time.Time) ([]*Event, error)

	// Close releases any resources held by the store.
	Close() error
}

// Decision is the outcome of a quota evaluation. It is derived state,
// computed fresh on every check and never cached: concurrent consumption
// must be visible to the next evaluation.
type Decision struct {
	// WithinLimit reports whether the organization may consume one more unit.
	WithinLimit bool

	// Current is the quantity consumed so far this calendar month.
	Current int64

	// Limit is the applicable monthly ceiling; Unlimited (-1) when the
	// dimension is unregulated.
	Limit int64
}

// Error values for the usage subsystem. Denial outcomes (rate limited,
// quota exceeded) are modeled as decisions, not errors; these errors cover
// invalid input and infrastructure failure only.
var (
	// ErrInvalidOrg is returned when an organization id is empty.
	ErrInvalidOrg = errors.New("organization id must not be empty")

	// ErrStoreUnavailable wraps storage failures during recording.
	ErrStoreUnavailable = errors.New("usage event store unavailable")
)

// QuotaError describes a quota violation for callers that want to surface
// the rejection as an error (e.g. CLI tooling). HTTP handlers use the
// Decision directly instead.
type QuotaError struct {
	OrgID   string
	Type    EventType
	Current int64
	Limit   int64
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %s at %d/%d this month",
		e.OrgID, e.Type, e.Current, e.Limit)
}
