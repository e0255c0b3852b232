package throttle

import "testing"

// TestIdentify_Precedence verifies user > forwarded > remote > unknown.
func TestIdentify_Precedence(t *testing.T) {
	tests := []struct {
		name         string
		userID       string
		forwardedFor string
		remoteAddr   string
		want         ClientKey
	}{
		{
			name:         "user wins over everything",
			userID:       "u-123",
			forwardedFor: "203.0.113.9",
			remoteAddr:   "198.51.100.1:4432",
			want:         ClientKey("user:u-123"),
		},
		{
			name:         "forwarded wins over remote",
			forwardedFor: "203.0.113.9",
			remoteAddr:   "198.51.100.1:4432",
			want:         ClientKey("ip:203.0.113.9"),
		},
		{
			name:         "first forwarded hop only",
			forwardedFor: "203.0.113.9, 10.0.0.1, 10.0.0.2",
			remoteAddr:   "198.51.100.1:4432",
			want:         ClientKey("ip:203.0.113.9"),
		},
		{
			name:         "forwarded hop is trimmed",
			forwardedFor: "  203.0.113.9 , 10.0.0.1",
			want:         ClientKey("ip:203.0.113.9"),
		},
		{
			name:       "remote host stripped of port",
			remoteAddr: "198.51.100.1:4432",
			want:       ClientKey("ip:198.51.100.1"),
		},
		{
			name:       "remote without port used as-is",
			remoteAddr: "198.51.100.1",
			want:       ClientKey("ip:198.51.100.1"),
		},
		{
			name:       "ipv6 remote",
			remoteAddr: "[2001:db8::1]:8080",
			want:       ClientKey("ip:2001:db8::1"),
		},
		{
			name: "nothing resolvable",
			want: UnknownKey,
		},
		{
			name:         "blank forwarded entry falls through",
			forwardedFor: " , 10.0.0.1",
			remoteAddr:   "198.51.100.1:4432",
			want:         ClientKey("ip:198.51.100.1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identify(tt.userID, tt.forwardedFor, tt.remoteAddr)
			if got != tt.want {
				t.Errorf("Identify(%q, %q, %q) = %q, want %q",
					tt.userID, tt.forwardedFor, tt.remoteAddr, got, tt.want)
			}
		})
	}
}
