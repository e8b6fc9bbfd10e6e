// Package cache provides a small string cache with Redis and in-process backends.
package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores string values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Redis is a Cache backed by a shared Redis instance.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis cache; keys are stored under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get returns the value for key, or ok=false when it is absent.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Memory is a Cache that lives in process memory.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates an in-process cache that sweeps expired keys every cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns the value for key, or ok=false when it is absent or expired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// Set stores value under key for ttl; ttl <= 0 keeps it until evicted.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(key, value, ttl)
	return nil
}
