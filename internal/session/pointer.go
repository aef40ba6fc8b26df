package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PointerKeyPrefix is the Redis key prefix for a client's current organization
	PointerKeyPrefix = "session_org:"
	// PointerDuration is how long an idle client keeps its organization
	PointerDuration = 30 * 24 * time.Hour
)

// PointerStore persists the client's "current organization" pointer.
type PointerStore interface {
	Get(ctx context.Context, clientID string) (string, error)
	Set(ctx context.Context, clientID, orgID string) error
	Clear(ctx context.Context, clientID string) error
}

type RedisPointers struct {
	client *redis.Client
}

func NewRedisPointers(client *redis.Client) *RedisPointers {
	return &RedisPointers{client: client}
}

// Get returns "" when the client has no pointer.
func (p *RedisPointers) Get(ctx context.Context, clientID string) (string, error) {
	val, err := p.client.Get(ctx, PointerKeyPrefix+clientID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// Set stores the pointer and restarts its expiry.
func (p *RedisPointers) Set(ctx context.Context, clientID, orgID string) error {
	return p.client.Set(ctx, PointerKeyPrefix+clientID, orgID, PointerDuration).Err()
}

func (p *RedisPointers) Clear(ctx context.Context, clientID string) error {
	return p.client.Del(ctx, PointerKeyPrefix+clientID).Err()
}

type MemoryPointers struct {
	mu   sync.Mutex
	orgs map[string]string
}

func NewMemoryPointers() *MemoryPointers {
	return &MemoryPointers{orgs: make(map[string]string)}
}

func (p *MemoryPointers) Get(_ context.Context, clientID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orgs[clientID], nil
}

func (p *MemoryPointers) Set(_ context.Context, clientID, orgID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orgs[clientID] = orgID
	return nil
}

func (p *MemoryPointers) Clear(_ context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orgs, clientID)
	return nil
}
