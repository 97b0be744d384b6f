package http

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientIP is returned when no address can be determined
const UnknownClientIP = "unknown"

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
	EdgeHeader     string   // client IP header set by the CDN edge, e.g. CF-Connecting-IP
}

// ExtractClientIP extracts the real client IP address from the request.
// Forwarding headers are only honored when the direct peer is a trusted proxy.
//
// Flow:
// 1. X-Forwarded-For (first valid entry)
// 2. X-Real-IP
// 3. the configured edge header
// 4. RemoteAddr
// 5. "unknown"
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
			return xri
		}

		if config.EdgeHeader != "" {
			if edge := strings.TrimSpace(r.Header.Get(config.EdgeHeader)); isValidIP(edge) {
				return edge
			}
		}
	}

	if remoteIP == "" {
		return UnknownClientIP
	}
	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
