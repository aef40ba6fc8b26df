// Package admission throttles how often a client may submit a report.
//
// Each client owns a sliding window of recent submission timestamps. A new
// submission is admitted while fewer than Limit timestamps fall inside the
// trailing Window. The controller is a usability throttle: when its store
// cannot be read it admits the request instead of blocking the user.
package admission

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
)

const (
	DefaultLimit  = 3
	DefaultWindow = 60 * time.Second
)

// WindowStore persists per-client timestamp lists.
type WindowStore interface {
	Load(ctx context.Context, clientID string) ([]time.Time, error)
	Save(ctx context.Context, clientID string, stamps []time.Time, ttl time.Duration) error
	Clear(ctx context.Context, clientID string) error
}

type Controller struct {
	store  WindowStore
	limit  int
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Controller)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New builds a controller. Non-positive limit or window fall back to 3 per 60s.
func New(store WindowStore, limit int, window time.Duration, opts ...Option) *Controller {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Controller{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Limit() int { return c.limit }

func (c *Controller) Window() time.Duration { return c.window }

// active returns the timestamps strictly newer than now-window, oldest first.
func (c *Controller) active(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-c.window)
	out := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Check reports whether a new submission is permitted. It never writes.
func (c *Controller) Check(ctx context.Context, clientID string) bool {
	stamps, err := c.store.Load(ctx, clientID)
	if err != nil {
		c.logger.Warn("admission window unreadable, admitting",
			zap.String("client_id", clientID), zap.Error(err))
		return true
	}
	return len(c.active(stamps, c.now())) < c.limit
}

// Record prunes expired timestamps, appends now and persists the result.
// An unreadable window is replaced rather than appended to.
func (c *Controller) Record(ctx context.Context, clientID string) error {
	now := c.now()
	stamps, err := c.store.Load(ctx, clientID)
	if err != nil {
		c.logger.Warn("admission window unreadable, starting fresh",
			zap.String("client_id", clientID), zap.Error(err))
		stamps = nil
	}
	stamps = append(c.active(stamps, now), now)
	return c.store.Save(ctx, clientID, stamps, c.window)
}

// TimeUntilReset returns how long until the oldest stored timestamp leaves
// the window, rounded up to whole seconds. Zero when nothing is stored or the
// window is unreadable. The stored list only changes on Record, so the value
// never grows between records and hits zero as the oldest stamp exits, even
// while younger stamps are still active.
func (c *Controller) TimeUntilReset(ctx context.Context, clientID string) time.Duration {
	stamps, err := c.store.Load(ctx, clientID)
	if err != nil || len(stamps) == 0 {
		return 0
	}
	oldest := stamps[0]
	for _, ts := range stamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	remaining := oldest.Add(c.window).Sub(c.now())
	if remaining <= 0 {
		return 0
	}
	return time.Duration(apperr.WaitSeconds(remaining)) * time.Second
}

// Admit is Check followed by a typed error carrying the wait when blocked.
func (c *Controller) Admit(ctx context.Context, clientID string) error {
	if c.Check(ctx, clientID) {
		return nil
	}
	wait := c.TimeUntilReset(ctx, clientID)
	if wait <= 0 {
		wait = time.Second
	}
	return &apperr.RateLimitedError{Wait: wait}
}

// Reset forgets every recorded timestamp for the client.
func (c *Controller) Reset(ctx context.Context, clientID string) error {
	return c.store.Clear(ctx, clientID)
}

// Seconds renders a wait as whole seconds for clients.
func Seconds(d time.Duration) int {
	return apperr.WaitSeconds(d)
}
