package middleware

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/civicpulse-backend/pkg/clientip"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

// The API only ever answers with JSON, so nothing may be framed or loaded.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Referrer-Policy":           "no-referrer",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range securityHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 unless r.Host is one of allowedHosts, a comma
// separated list of bare hostnames (e.g. "api.civicpulse.app,civicpulse.app").
// An empty list disables the check.
func HostCheck(allowedHosts string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, h := range strings.Split(allowedHosts, ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !allowed[strings.ToLower(strings.TrimSpace(host))] {
				utils.WriteMessage(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Global: per-IP 5 req/s, burst 20.
var globalLimiters = newLimiterPool(rate.Limit(5), 20)

// GlobalRateLimit returns 429 when an IP exceeds the in-process budget.
func GlobalRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait, ok := globalLimiters.allow(clientip.RealClientIP(r)); !ok {
			utils.WriteRateLimited(w, wait, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sign-in: 1 req/5s, burst 2.
var (
	loginLimiters = newLimiterPool(rate.Every(loginRateLimitEvery), 2)
	loginPaths    = map[string]bool{
		"/api/auth/signin": true,
	}
)

// LoginRateLimit guards sign-in routes only. Use after GlobalRateLimit.
func LoginRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !loginPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if wait, ok := loginLimiters.allow(clientip.RealClientIP(r)); !ok {
			utils.WriteRateLimited(w, wait, "Too many sign-in attempts. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProductionSecurity returns SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit.
func ProductionSecurity(allowedHosts string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHosts),
		GlobalRateLimit,
		LoginRateLimit,
	}
}
