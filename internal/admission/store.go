package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces admission windows in Redis.
const KeyPrefix = "admission:"

// RedisStore keeps each window as a JSON array of unix milliseconds with a
// TTL equal to the window, so idle clients expire on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, clientID string) ([]time.Time, error) {
	raw, err := s.client.Get(ctx, KeyPrefix+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var millis []int64
	if err := json.Unmarshal(raw, &millis); err != nil {
		return nil, fmt.Errorf("decode admission window: %w", err)
	}
	stamps := make([]time.Time, 0, len(millis))
	for _, ms := range millis {
		stamps = append(stamps, time.UnixMilli(ms))
	}
	return stamps, nil
}

func (s *RedisStore) Save(ctx context.Context, clientID string, stamps []time.Time, ttl time.Duration) error {
	millis := make([]int64, 0, len(stamps))
	for _, ts := range stamps {
		millis = append(millis, ts.UnixMilli())
	}
	data, err := json.Marshal(millis)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, KeyPrefix+clientID, data, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, KeyPrefix+clientID).Err()
}

// MemoryStore is a process-local WindowStore. TTLs are ignored; expired
// entries are pruned by the controller.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) Load(_ context.Context, clientID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.windows[clientID]...), nil
}

func (s *MemoryStore) Save(_ context.Context, clientID string, stamps []time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[clientID] = append([]time.Time(nil), stamps...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, clientID)
	return nil
}
