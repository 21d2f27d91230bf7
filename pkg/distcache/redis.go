// Package distcache provides a Redis-backed alternative to the in-process
// LRU cache in pkg/querycache, for clustering deployments that run more
// than one server replica and need run results shared across them.
package distcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rinikerlab/cnncluster/pkg/observability"
	"github.com/rinikerlab/cnncluster/pkg/querycache"
)

// RedisRunCache caches clustering run results in Redis, keyed the same
// way as querycache.RunKey so either cache backend can serve the same
// lookup.
type RedisRunCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *observability.Logger
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisRunCache opens a connection to Redis and returns a cache backed
// by it.
func NewRedisRunCache(cfg Config, logger *observability.Logger) *RedisRunCache {
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisRunCache{client: client, ttl: cfg.TTL, logger: logger}
}

// Ping verifies the Redis connection is reachable.
func (c *RedisRunCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("distcache: ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *RedisRunCache) Close() error {
	return c.client.Close()
}

func redisKey(key querycache.Key) string {
	return "cnncluster:run:" + string(key)
}

// GetClusters retrieves a cached clustering result.
func (c *RedisRunCache) GetClusters(ctx context.Context, key querycache.Key) ([][]uint32, bool) {
	raw, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}

	var clusters [][]uint32
	if err := json.Unmarshal(raw, &clusters); err != nil {
		c.logger.Warn("distcache: corrupt cache entry, dropping", map[string]interface{}{"key": string(key), "error": err.Error()})
		c.client.Del(ctx, redisKey(key))
		return nil, false
	}
	return clusters, true
}

// PutClusters stores a clustering result in Redis with the configured
// TTL.
func (c *RedisRunCache) PutClusters(ctx context.Context, key querycache.Key, clusters [][]uint32) error {
	raw, err := json.Marshal(clusters)
	if err != nil {
		return fmt.Errorf("distcache: marshal clusters: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("distcache: set key %s: %w", key, err)
	}
	return nil
}

// Invalidate removes a cached entry.
func (c *RedisRunCache) Invalidate(ctx context.Context, key querycache.Key) error {
	return c.client.Del(ctx, redisKey(key)).Err()
}
