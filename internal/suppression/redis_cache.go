package suppression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "suppression:"

// RedisCache implements Cache on Redis with a short TTL. The TTL bounds the
// staleness window if an invalidation is lost; suppression itself is eventual
// by contract, so a few seconds of lag is acceptable.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed suppression cache.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, address string) (bool, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+address).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("suppression cache get: %w", err)
	}
	return val == "1", true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, address string, suppressed bool) error {
	val := "0"
	if suppressed {
		val = "1"
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+address, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("suppression cache set: %w", err)
	}
	return nil
}

// Invalidate implements Cache.
func (c *RedisCache) Invalidate(ctx context.Context, address string) error {
	if err := c.client.Del(ctx, cacheKeyPrefix+address).Err(); err != nil {
		return fmt.Errorf("suppression cache invalidate: %w", err)
	}
	return nil
}
