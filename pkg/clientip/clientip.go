// Package clientip derives the caller address used for per-IP limits.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the caller IP from r.RemoteAddr in canonical form, so
// an IPv4-mapped IPv6 address and its IPv4 form share one limiter key.
// Proxy headers are only honored when chi's RealIP middleware has already
// rewritten RemoteAddr.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	host = strings.TrimSpace(host)
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	}
	return host
}
