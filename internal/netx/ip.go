// Package netx provides network address helpers for the auth core.
package netx

import (
	"net/netip"
	"strings"
)

// NormalizeIP canonicalizes a client address so that the same host always
// maps to the same rate-limit key and allow-list entry. It strips an
// optional port ("1.2.3.4:5678", "[::1]:80"), drops IPv6 zone suffixes,
// and folds IPv4-mapped IPv6 addresses ("::ffff:1.2.3.4") back to their
// dotted-quad form.
//
// If the input cannot be parsed as an IP address it is returned trimmed
// but otherwise unchanged, so callers still get a stable key.
func NormalizeIP(addr string) string {
	s := strings.TrimSpace(addr)
	if s == "" {
		return s
	}

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return canonical(ap.Addr())
	}

	// Strip zone before parsing: "fe80::1%eth0".
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if a, err := netip.ParseAddr(s); err == nil {
		return canonical(a)
	}
	return s
}

func canonical(a netip.Addr) string {
	if a.Is4In6() {
		a = a.Unmap()
	}
	return a.WithZone("").String()
}
