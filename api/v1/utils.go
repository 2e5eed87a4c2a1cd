package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// getClientIP resolves the visitor address, preferring the first public
// address found in the proxy headers. When only private or loopback
// addresses are available the first valid one is returned so the visit
// still records a masked address.
func getClientIP(c *fiber.Ctx) string {
	var candidates []string
	candidates = append(candidates, strings.Split(c.Get("X-Forwarded-For"), ",")...)

	for _, header := range []string{
		"X-Real-IP",
		"CF-Connecting-IP",
		"True-Client-IP",
		"X-Client-IP",
	} {
		if value := c.Get(header); value != "" {
			candidates = append(candidates, value)
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		candidates = append(candidates, parseForwardedHeader(forwarded)...)
	}

	if ip := selectPreferredIP(candidates); ip != "" {
		return ip
	}

	if remote := c.Context().RemoteAddr(); remote != nil {
		if clean, addr := normalizeIP(remote.String()); addr.IsValid() {
			candidates = append(candidates, clean)
		}
	}
	candidates = append(candidates, c.IP())

	for _, raw := range candidates {
		if clean, addr := normalizeIP(raw); addr.IsValid() {
			return clean
		}
	}
	return ""
}

// isPrivateIP reports whether addr should never be geo located.
func isPrivateIP(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}

func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		clean, addr := normalizeIP(raw)
		if !addr.IsValid() || isPrivateIP(addr) {
			continue
		}

		if addr.Is4() {
			return clean
		}

		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	return ipv6Fallback
}

// normalizeIP strips quotes, zones, ports and brackets and unwraps
// IPv4-mapped IPv6 addresses.
func normalizeIP(raw string) (string, netip.Addr) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return "", netip.Addr{}
	}

	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
		if strings.HasPrefix(clean, "[") {
			clean += "]"
		}
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr().Unmap()
		return addr.String(), addr
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		addr = addr.Unmap()
		return addr.String(), addr
	}

	if host, _, err := net.SplitHostPort(clean); err == nil && host != clean {
		return normalizeIP(host)
	}

	return "", netip.Addr{}
}

func parseForwardedHeader(header string) []string {
	var candidates []string

	entries := strings.Split(header, ",")
	for _, entry := range entries {
		parts := strings.Split(entry, ";")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				candidates = append(candidates, part[len("for="):])
			}
		}
	}

	return candidates
}

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}
