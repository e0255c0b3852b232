package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"fathomdata/warden/pkg/usage"
)

const (
	// OrgIDHeader carries the caller's organization identity, attached by
	// an upstream authentication layer.
	OrgIDHeader = "X-Org-ID"

	// TierHeader optionally carries the organization's subscription tier.
	// Absent or unknown values fall back to the default tier.
	TierHeader = "X-Org-Tier"
)

// UsageHandler serves the usage endpoints: reporting backed by the quota
// evaluator, quota pre-checks, and best-effort event ingest through the
// recorder.
type UsageHandler struct {
	evaluator *usage.Evaluator
	recorder  *usage.Recorder
	logger    *slog.Logger
}

// NewUsageHandler creates a usage handler over the given evaluator and
// recorder. A nil recorder disables the ingest endpoint.
func NewUsageHandler(evaluator *usage.Evaluator, recorder *usage.Recorder) *UsageHandler {
	return &UsageHandler{
		evaluator: evaluator,
		recorder:  recorder,
		logger:    slog.Default().With("component", "handlers.usage"),
	}
}

// Register attaches the usage routes to the mux.
func (h *UsageHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/usage/summary", h.Summary)
	mux.HandleFunc("/v1/usage/limits", h.Limits)
	mux.HandleFunc("/v1/usage/quota-status", h.QuotaStatus)
	mux.HandleFunc("/v1/usage/check", h.Check)
	mux.HandleFunc("/v1/usage/events", h.RecordEvent)
}

// Summary handles GET /v1/usage/summary?days=N.
// Days is clamped to 1..365 and defaults to 30.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "invalid days parameter", "days must be an integer between 1 and 365")
			return
		}
		days = parsed
	}

	summary, err := h.evaluator.Summarize(r.Context(), orgID, days)
	if err != nil {
		h.writeEvaluatorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Limits handles GET /v1/usage/limits: the full per-dimension quota report
// including the AI token input/output breakdown.
func (h *UsageHandler) Limits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	report, err := h.evaluator.CheckAll(r.Context(), orgID, h.tierFor(r))
	if err != nil {
		h.writeEvaluatorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// QuotaStatus handles GET /v1/usage/quota-status: the quick ok /
// approaching_limit / over_limit classification.
func (h *UsageHandler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	report, err := h.evaluator.QuotaStatus(r.Context(), orgID, h.tierFor(r))
	if err != nil {
		h.writeEvaluatorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Check handles GET /v1/usage/check?event_type=T: a single-dimension quota
// pre-check for upstream services deciding whether to start an operation.
// The response mirrors the evaluator's decision; it never mutates state.
func (h *UsageHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	eventType := usage.EventType(r.URL.Query().Get("event_type"))
	if !validEventType(eventType) {
		writeError(w, http.StatusBadRequest, "invalid event type", "event_type must be one of the known resource event types")
		return
	}

	decision, err := h.evaluator.CheckLimit(r.Context(), orgID, eventType, h.tierFor(r))
	if err != nil {
		h.writeEvaluatorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_type":   eventType,
		"within_limit": decision.WithinLimit,
		"current":      decision.Current,
		"limit":        decision.Limit,
	})
}

// recordEventRequest is the ingest payload for one usage event.
type recordEventRequest struct {
	EventType string         `json:"event_type"`
	Quantity  int64          `json:"quantity"`
	Metadata  map[string]any `json:"metadata"`
}

// RecordEvent handles POST /v1/usage/events: best-effort usage ingest.
// Persistence is asynchronous and fail-silent, so a well-formed request is
// always answered 202; losing a billing event must never fail the business
// operation that emitted it.
func (h *UsageHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "only POST is supported on this endpoint")
		return
	}
	if h.recorder == nil {
		writeError(w, http.StatusNotImplemented, "ingest disabled", "usage event ingest is not enabled on this instance")
		return
	}
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "request body must be a JSON usage event")
		return
	}
	eventType := usage.EventType(req.EventType)
	if !validEventType(eventType) {
		writeError(w, http.StatusBadRequest, "invalid event type", "event_type must be one of the known resource event types")
		return
	}

	h.recorder.Record(r.Context(), orgID, eventType, req.Quantity, req.Metadata)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// validEventType reports whether t is a known resource event type.
func validEventType(t usage.EventType) bool {
	for _, known := range usage.EventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// requireOrg extracts the organization identity or writes a 400.
func (h *UsageHandler) requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID := r.Header.Get(OrgIDHeader)
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "missing organization", "the X-Org-ID header is required")
		return "", false
	}
	return orgID, true
}

// tierFor resolves the caller's tier from headers, falling back to the
// default for unknown values.
func (h *UsageHandler) tierFor(r *http.Request) usage.Tier {
	return usage.ParseTier(r.Header.Get(TierHeader))
}

// writeEvaluatorError maps evaluator errors to HTTP responses.
func (h *UsageHandler) writeEvaluatorError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, usage.ErrInvalidOrg) {
		writeError(w, http.StatusBadRequest, "invalid organization", "organization identity is missing or malformed")
		return
	}

	h.logger.Error("usage query failed",
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal server error", "failed to query usage data")
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errMsg, detail string) {
	writeJSON(w, status, map[string]string{
		"error":   errMsg,
		"message": detail,
	})
}

// writeMethodNotAllowed writes the standard 405 response.
func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", "only GET is supported on this endpoint")
}
