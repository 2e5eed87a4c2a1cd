package tracking

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParseClientIP parses a resolved client address, unwrapping IPv4-mapped
// IPv6 addresses. Invalid input yields an invalid netip.Addr.
func ParseClientIP(raw string) netip.Addr {
	raw = strings.TrimSpace(raw)
	if percent := strings.Index(raw, "%"); percent != -1 {
		raw = raw[:percent]
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// MaskIP hides the host part of an address: the last IPv4 octet, or
// everything after the first three IPv6 groups.
func MaskIP(addr netip.Addr) string {
	if !addr.IsValid() {
		return ""
	}
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.xxx", b[0], b[1], b[2])
	}

	groups := strings.Split(addr.StringExpanded(), ":")
	return strings.Join(groups[:3], ":") + "::xxxx"
}

// Locatable reports whether a geo lookup makes sense for addr.
func Locatable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast()
}
