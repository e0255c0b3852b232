// Package handlers provides the HTTP handlers for the Warden API.
//
// # Endpoints
//
//	GET /v1/usage/summary?days=N   aggregated usage by event type (default 30 days)
//	GET /v1/usage/limits           per-dimension quota report with AI token breakdown
//	GET /v1/usage/quota-status     quick ok / approaching_limit / over_limit check
//	GET /v1/health                 liveness probe, exempt from rate limiting
//
// # Identity
//
// Handlers read the caller's organization from the X-Org-ID header and the
// subscription tier from X-Org-Tier. Both are attached by an upstream
// authentication layer and consumed here as-is; unknown tiers fall back to
// the default tier.
package handlers
