package throttle

import (
	"net"
	"strings"
)

// ClientKey is the tagged identity a request is counted under: either
// "user:<id>" for authenticated callers or "ip:<address>" for everyone
// else. Exactly one form applies per request, never both.
type ClientKey string

// UnknownKey is the shared bucket for requests whose client address cannot
// be resolved. Coarsening all unknown-identity traffic into one bucket is
// intentional: it cannot be used to dodge the limiter by shedding identity.
const UnknownKey ClientKey = "ip:unknown"

// Identify derives the counting key for a caller.
//
// Precedence: an authenticated user always wins over any network address;
// for unauthenticated callers the first entry of the forwarding header wins
// over the transport-level address. Identify is total and never fails.
func Identify(userID, forwardedFor, remoteAddr string) ClientKey {
	if userID != "" {
		return ClientKey("user:" + userID)
	}

	if forwardedFor != "" {
		first := forwardedFor
		if idx := strings.Index(first, ","); idx >= 0 {
			first = first[:idx]
		}
		first = strings.TrimSpace(first)
		if first != "" {
			return ClientKey("ip:" + first)
		}
	}

	if remoteAddr != "" {
		// RemoteAddr is usually "host:port"; fall back to the raw value
		// when it does not parse (e.g. a bare IP from a test).
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			return ClientKey("ip:" + host)
		}
		return ClientKey("ip:" + remoteAddr)
	}

	return UnknownKey
}
