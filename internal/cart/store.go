package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps carts between requests, keyed by terminal id.
type Store interface {
	// Load returns nil, nil when the terminal has no saved cart.
	Load(ctx context.Context, terminalID string) (*Cart, error)
	Save(ctx context.Context, terminalID string, c *Cart) error
	Delete(ctx context.Context, terminalID string) error
}

type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, terminalID string) (*Cart, error) {
	s.mu.Lock()
	data, ok := s.carts[terminalID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MemoryStore) Save(_ context.Context, terminalID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.carts[terminalID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, terminalID string) error {
	s.mu.Lock()
	delete(s.carts, terminalID)
	s.mu.Unlock()
	return nil
}

// RedisStore keeps carts as JSON strings with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func redisKey(terminalID string) string {
	return fmt.Sprintf("cart:terminal:%s", terminalID)
}

func (s *RedisStore) Load(ctx context.Context, terminalID string) (*Cart, error) {
	data, err := s.client.Get(ctx, redisKey(terminalID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c Cart
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, terminalID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(terminalID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, terminalID string) error {
	return s.client.Del(ctx, redisKey(terminalID)).Err()
}
