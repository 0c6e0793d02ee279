package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stats() map[string]interface{}
	Health(ctx context.Context) error
	Close() error
}

// l1MaxTTL caps how long a value promoted from Redis stays in process
// memory, so other instances' invalidations are observed reasonably soon.
const l1MaxTTL = 30 * time.Second

type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	metrics *CacheMetrics
}

// NewMultiLevelCache builds an in-process cache backed by Redis when
// redisCache is non-nil, and a memory-only cache otherwise.
func NewMultiLevelCache(redisCache *RedisCache) *MultiLevelCache {
	return &MultiLevelCache{
		l1:      NewMemoryCache(time.Minute),
		l2:      redisCache,
		metrics: NewCacheMetrics(),
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.metrics.RecordSet()
	c.l1.SetRaw(key, data, minDuration(ttl, l1MaxTTL))

	if c.l2 != nil {
		if err := c.l2.SetRaw(ctx, key, data, ttl); err != nil {
			c.metrics.RecordError()
			return err
		}
	}

	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	found, err := c.l1.Get(key, dest)
	if err != nil {
		c.metrics.RecordError()
		c.l1.Delete(key)
	}
	if found {
		c.metrics.RecordHit()
		return nil
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	data, ttl, err := c.l2.GetRaw(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.metrics.RecordMiss()
		} else {
			c.metrics.RecordError()
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	c.metrics.RecordHit()
	if ttl > 0 {
		c.l1.SetRaw(key, data, minDuration(ttl, l1MaxTTL))
	}
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.metrics.RecordDelete()
	c.l1.Delete(key)

	if c.l2 != nil {
		return c.l2.Delete(ctx, key)
	}

	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	c.metrics.RecordDelete()
	c.l1.DeletePattern(pattern)

	if c.l2 != nil {
		return c.l2.DeletePattern(ctx, pattern)
	}

	return nil
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.l1.Exists(key) {
		return true, nil
	}

	if c.l2 != nil {
		return c.l2.Exists(ctx, key)
	}

	return false, nil
}

func (c *MultiLevelCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":      c.l1.Stats(),
		"metrics": c.metrics.Snapshot(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}

	return nil
}

// Close stops the in-process layer. The Redis client is owned by the caller.
func (c *MultiLevelCache) Close() error {
	return c.l1.Close()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
