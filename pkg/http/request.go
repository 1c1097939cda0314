package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
	// TrustClientHeaders honors geo headers sent directly by clients. Only
	// for local development.
	TrustClientHeaders bool
}

// ExtractClientIP extracts the real client IP address from the request.
// X-Forwarded-For and X-Real-IP are honored only when the request comes
// from a trusted proxy; otherwise RemoteAddr is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)
	if !fromTrustedProxy(remoteIP, config) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(candidate); isValidIP(ip) {
				return ip
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
		return xri
	}
	return remoteIP
}

// TrustedHeader returns the named header when the request comes through a
// trusted proxy, or when client headers are trusted outright. It returns ""
// otherwise.
func TrustedHeader(r *http.Request, config *IPConfig, name string) string {
	if config == nil {
		return ""
	}
	if config.TrustClientHeaders || fromTrustedProxy(remoteAddr(r), config) {
		return strings.TrimSpace(r.Header.Get(name))
	}
	return ""
}

// remoteAddr extracts the IP address from RemoteAddr, removing the port
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func fromTrustedProxy(ip string, config *IPConfig) bool {
	if config == nil || len(config.TrustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, cidr := range config.TrustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue // invalid ranges never match
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func isValidIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}
