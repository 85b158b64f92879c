// Package trial implements the free-trial eligibility engine: device
// fingerprint and IP-prefix heuristics deciding whether a user may consume
// a free report, plus abuse-alert triggering.
package trial

import (
	"net/netip"
	"strings"
)

// LocalhostPrefix is the sentinel prefix for loopback callers.
const LocalhostPrefix = "localhost"

// GetIPPrefix reduces a client IP address to its coarse network identity:
// the first 3 dot-separated octets for IPv4 (IPv4-mapped-IPv6 addresses are
// unwrapped first), the first 3 colon-separated groups for IPv6, and the
// sentinel "localhost" for loopback literals. Unparseable input falls back
// to the raw string so distinct garbage values stay distinct keys.
func GetIPPrefix(remoteIP string) string {
	raw := strings.TrimSpace(remoteIP)
	if raw == "" {
		return ""
	}
	if raw == "localhost" {
		return LocalhostPrefix
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}

	if addr.IsLoopback() {
		return LocalhostPrefix
	}

	if addr.Is4() || addr.Is4In6() {
		v4 := addr.Unmap().As4()
		parts := strings.Split(netip.AddrFrom4(v4).String(), ".")
		return strings.Join(parts[:3], ".")
	}

	// IPv6: first 3 colon groups as written by the caller. Falls back to
	// the expanded form when zero compression swallows a leading group.
	groups := strings.Split(strings.ToLower(raw), ":")
	if len(groups) >= 3 && groups[0] != "" && groups[1] != "" && groups[2] != "" {
		return strings.Join(groups[:3], ":")
	}
	groups = strings.Split(addr.StringExpanded(), ":")
	return strings.Join(groups[:3], ":")
}
