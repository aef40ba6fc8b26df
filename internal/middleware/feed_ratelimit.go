package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/civicpulse-backend/pkg/clientip"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

// Feed paging limits, per IP. Signed-in: 30/min burst 20. Anonymous: ~10/min burst 5.
const (
	feedAuthBurst = 20
	feedAnonBurst = 5
)

var (
	feedAuthLimiters = newLimiterPool(rate.Limit(0.5), feedAuthBurst)
	feedAnonLimiters = newLimiterPool(rate.Limit(0.17), feedAnonBurst)
)

func hasBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && len(strings.TrimPrefix(auth, "Bearer ")) > 0
}

// FeedRateLimit applies only to GET /api/reports/more.
func FeedRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/api/reports/more") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientip.RealClientIP(r)
		pool, limit := feedAnonLimiters, feedAnonBurst
		if hasBearer(r) {
			pool, limit = feedAuthLimiters, feedAuthBurst
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))

		if wait, ok := pool.allow(ip); !ok {
			w.Header().Set("X-RateLimit-Remaining", "0")
			utils.WriteRateLimited(w, wait, "Too many feed requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
