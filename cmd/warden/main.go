// Warden is a request admission and tenant usage governance service.
//
// It enforces two protection layers in front of a multi-tenant API:
//   - Per-client request rate limiting over an in-memory sliding window
//   - Tier-based monthly usage quotas evaluated from an append-only event log
//
// Usage:
//
//	# Start server with default configuration
//	warden run
//
//	# Start with custom configuration file
//	warden run --config /path/to/config.yaml
//
//	# Show version information
//	warden version
//
//	# Query aggregated usage for an organization
//	warden usage summary --org org-123 --days 30
package main

func main() {
	Execute()
}
