package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/pkg/clientip"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = time.Hour
)

// IPGuard counts requests per IP in Redis across instances and blocks IPs
// that exceed the limit. Redis errors let the request through.
type IPGuard struct {
	client   *redis.Client
	logger   *zap.Logger
	limit    int
	window   time.Duration
	blockFor time.Duration
}

func NewIPGuard(client *redis.Client, logger *zap.Logger) *IPGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPGuard{
		client:   client,
		logger:   logger,
		limit:    RateLimitMaxRequests,
		window:   RateLimitWindow,
		blockFor: BlockedIPDuration,
	}
}

// WithLimit overrides the request budget per window.
func (g *IPGuard) WithLimit(limit int, window time.Duration) *IPGuard {
	g.limit = limit
	g.window = window
	return g
}

func (g *IPGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		ctx := r.Context()

		blocked, err := g.IsIPBlocked(ctx, ip)
		if err == nil && blocked {
			utils.WriteMessage(w, http.StatusTooManyRequests,
				"Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		key := RateLimitKeyPrefix + ip
		count, err := g.client.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = g.client.Expire(ctx, key, g.window).Err()
		}
		if err != nil {
			g.logger.Warn("ip rate limit unavailable, allowing request", zap.String("ip", ip), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(g.limit) {
			if err := g.client.Set(ctx, BlockedIPKeyPrefix+ip, "1", g.blockFor).Err(); err != nil {
				g.logger.Warn("failed to block ip", zap.String("ip", ip), zap.Error(err))
			} else {
				g.logger.Info("ip blocked", zap.String("ip", ip), zap.Int64("requests", count))
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(g.window.Seconds())))
			utils.WriteMessage(w, http.StatusTooManyRequests,
				"Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(g.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(g.limit)-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(g.window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// UnblockIP removes an IP from the blocked list (admin function)
func (g *IPGuard) UnblockIP(ctx context.Context, ip string) error {
	return g.client.Del(ctx, BlockedIPKeyPrefix+ip, RateLimitKeyPrefix+ip).Err()
}

// IsIPBlocked checks if an IP is currently blocked
func (g *IPGuard) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := g.client.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return count > 0, err
}
