package storage

import (
	"context"
	"errors"
	"time"

	"newsroom-server/internal/interfaces"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const urlCachePrefix = "asset_url:"

// Compile-time interface check.
var _ interfaces.URLCache = (*redisURLCache)(nil)

// redisURLCache remembers public URLs of objects that were confirmed to
// exist, cutting repeated storage listings on cache-hit paths. Cache
// errors are logged and treated as misses.
type redisURLCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisURLCache creates the Redis-backed URL cache.
func NewRedisURLCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.URLCache {
	return &redisURLCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisURLCache"),
	}
}

func (c *redisURLCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, urlCachePrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("URL cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (c *redisURLCache) Set(ctx context.Context, key, url string) {
	if err := c.client.Set(ctx, urlCachePrefix+key, url, c.ttl).Err(); err != nil {
		c.logger.Warn("URL cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisURLCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, urlCachePrefix+key).Err(); err != nil {
		c.logger.Warn("URL cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
