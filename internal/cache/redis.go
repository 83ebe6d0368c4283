package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces assistant entries so the cache can share a Redis
// database with other tenants.
const keyPrefix = "fantasma:response:"

// RedisStore is a Store backed by Redis. TTL handling is delegated to the
// server, so Purge is a no-op.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server at addr and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping %q: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis get: %w", err)
	}
	return val, true, nil
}

// Set implements [Store].
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Purge implements [Store]. Redis expires keys server-side.
func (s *RedisStore) Purge(context.Context) (int, error) { return 0, nil }

// Close implements [Store].
func (s *RedisStore) Close() error { return s.client.Close() }
