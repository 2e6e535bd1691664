package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort string store. Implementations return ErrCacheMiss
// for absent keys; any other error means the cache itself is unavailable.
type Cache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache implements Cache on top of a Redis client.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// GetString reads key, translating redis.Nil into ErrCacheMiss.
func (c *RedisCache) GetString(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetString stores value under key with the given expiry.
func (c *RedisCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
