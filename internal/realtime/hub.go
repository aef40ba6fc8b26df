// Package realtime carries report change events between server instances over
// Redis pub/sub and fans them out to in-process subscribers per organization.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

const (
	channelPrefix  = "reports:org:"
	channelPattern = channelPrefix + "*"

	subscriptionBuffer = 64
	maxBackoff         = 30 * time.Second
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
)

// Event is the payload broadcast over Redis.
type Event struct {
	Type           EventType     `json:"type"`
	OrganizationID string        `json:"organization_id"`
	Report         models.Report `json:"report"`
	Timestamp      time.Time     `json:"timestamp"`
}

func Channel(orgID string) string { return channelPrefix + orgID }

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends ev to every instance subscribed to the organization.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.OrganizationID == "" {
		ev.OrganizationID = ev.Report.OrganizationID
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(ev.OrganizationID), data).Err()
}

// Subscription receives events for one organization until Close.
type Subscription struct {
	orgID string
	ch    chan Event
	hub   *Hub
	once  sync.Once
}

func (s *Subscription) OrganizationID() string { return s.orgID }

// Events is closed once the subscription is released.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is the per-instance registry of subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	client *redis.Client
	logger *zap.Logger

	started sync.Once
}

func NewHub(client *redis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		client: client,
		logger: logger,
	}
}

func (h *Hub) Subscribe(orgID string) *Subscription {
	s := &Subscription{orgID: orgID, ch: make(chan Event, subscriptionBuffer), hub: h}
	h.mu.Lock()
	set, ok := h.subs[orgID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[orgID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.orgID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.orgID)
		}
	}
	close(s.ch)
}

// SubscriberCount returns how many live subscriptions exist for orgID.
func (h *Hub) SubscriberCount(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orgID])
}

// Dispatch delivers ev to local subscribers of its organization. Slow
// subscribers miss events rather than stall the hub.
func (h *Hub) Dispatch(ev Event) {
	if ev.OrganizationID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.OrganizationID] {
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("dropping report event for slow subscriber",
				zap.String("org_id", ev.OrganizationID), zap.String("report_id", ev.Report.ID))
		}
	}
}

// Start runs the shared Redis listener once per instance.
func (h *Hub) Start(ctx context.Context) {
	h.started.Do(func() {
		go h.run(ctx)
	})
}

func (h *Hub) run(ctx context.Context) {
	if h.client == nil {
		h.logger.Warn("redis client not initialized; report subscriber not started")
		return
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := h.listen(ctx, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("report subscriber error", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (h *Hub) listen(ctx context.Context, onMessage func()) error {
	pubsub := h.client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("report subscriber started", zap.String("pattern", channelPattern))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			h.logger.Warn("failed to unmarshal report event", zap.Error(err))
			continue
		}
		if ev.OrganizationID == "" {
			ev.OrganizationID = strings.TrimPrefix(msg.Channel, channelPrefix)
		}
		h.Dispatch(ev)
	}
}
