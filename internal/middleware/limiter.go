package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
	loginRateLimitEvery    = 5 * time.Second
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// limiterPool hands out one token bucket per key and forgets keys idle for
// longer than limiterTTL.
type limiterPool struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	limit       rate.Limit
	burst       int
	cleanupOnce sync.Once
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{entries: make(map[string]*limiterEntry), limit: limit, burst: burst}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.cleanupOnce.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func (p *limiterPool) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.entries {
		if now.Sub(e.lastUse) > limiterTTL {
			delete(p.entries, k)
		}
	}
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for now := range ticker.C {
		p.sweep(now)
	}
}

// allow takes a token for key. When the bucket is empty it reports how long
// until the next token, without consuming it.
func (p *limiterPool) allow(key string) (time.Duration, bool) {
	res := p.get(key).Reserve()
	if !res.OK() {
		return limiterTTL, false
	}
	delay := res.Delay()
	if delay == 0 {
		return 0, true
	}
	res.Cancel()
	return delay, false
}
