package validate

import (
	"fmt"
	"net"
	"strings"
)

// privateIPv6Prefixes contains prefixes that identify private, link-local,
// or multicast IPv6 addresses.
var privateIPv6Prefixes = []string{"fe80:", "fec0:", "fc", "fd", "ff"}

// blockedHostnames contains hostnames that are always blocked.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

// dangerousSuffixes contains hostname suffixes that indicate internal/local resources.
var dangerousSuffixes = []string{
	".localhost",
	".local",
	".internal",
}

// normalizeHostname trims whitespace, lowercases, removes trailing dots, and
// unwraps IPv6 brackets.
func normalizeHostname(hostname string) string {
	normalized := strings.TrimSpace(hostname)
	normalized = strings.ToLower(normalized)
	normalized = strings.TrimSuffix(normalized, ".")

	if strings.HasPrefix(normalized, "[") && strings.HasSuffix(normalized, "]") {
		normalized = normalized[1 : len(normalized)-1]
	}

	return normalized
}

// IsPrivateIP reports whether ip is in a private, loopback, link-local,
// multicast, carrier-grade NAT, or otherwise non-public range. A nil ip is
// treated as private (fail closed).
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}

	if v4 := ip.To4(); v4 != nil {
		return isPrivateIPv4([4]byte{v4[0], v4[1], v4[2], v4[3]})
	}

	normalized := strings.ToLower(ip.String())
	for _, prefix := range privateIPv6Prefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// isPrivateIPv4 checks the IPv4 ranges that are never legitimate web_fetch
// destinations:
//   - 0.0.0.0/8 (current network)
//   - 10.0.0.0/8 (private)
//   - 127.0.0.0/8 (loopback)
//   - 169.254.0.0/16 (link-local)
//   - 172.16.0.0/12 (private)
//   - 192.168.0.0/16 (private)
//   - 100.64.0.0/10 (carrier-grade NAT)
func isPrivateIPv4(parts [4]byte) bool {
	octet1 := parts[0]
	octet2 := parts[1]

	if octet1 == 0 {
		return true
	}
	if octet1 == 10 {
		return true
	}
	if octet1 == 127 {
		return true
	}
	if octet1 == 169 && octet2 == 254 {
		return true
	}
	if octet1 == 172 && octet2 >= 16 && octet2 <= 31 {
		return true
	}
	if octet1 == 192 && octet2 == 168 {
		return true
	}
	if octet1 == 100 && octet2 >= 64 && octet2 <= 127 {
		return true
	}

	return false
}

// IsBlockedHostname reports whether a hostname is blocked outright, either
// by name or by a dangerous suffix.
func IsBlockedHostname(hostname string) bool {
	normalized := normalizeHostname(hostname)
	if normalized == "" {
		return false
	}

	if blockedHostnames[normalized] {
		return true
	}

	for _, suffix := range dangerousSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return true
		}
	}

	return false
}

// lookupIP is swapped out in tests to avoid real DNS.
var lookupIP = net.LookupIP

// ValidatePublicHostname validates that a hostname is a safe external
// request target: not a blocked name, not a literal private IP, and not
// resolving to any private IP. DNS failure blocks the request (fail closed).
func ValidatePublicHostname(hostname string) error {
	normalized := normalizeHostname(hostname)
	if normalized == "" {
		return &ValidationError{Field: "url", Reason: "invalid hostname: empty after normalization"}
	}

	if IsBlockedHostname(normalized) {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("SSRF blocked: hostname %q is not permitted", hostname)}
	}

	if ip := net.ParseIP(normalized); ip != nil {
		if IsPrivateIP(ip) {
			return &ValidationError{Field: "url", Reason: "SSRF blocked: private/internal IP address"}
		}
		return nil
	}

	ips, err := lookupIP(normalized)
	if err != nil {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("SSRF blocked: cannot resolve hostname %q: %v", hostname, err)}
	}
	if len(ips) == 0 {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("SSRF blocked: hostname %q resolved to no addresses", hostname)}
	}

	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return &ValidationError{Field: "url", Reason: "SSRF blocked: hostname resolves to private/internal IP address"}
		}
	}

	return nil
}
