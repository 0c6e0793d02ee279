package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryCache keeps JSON-encoded values so callers never share mutable
// state through the cache.
type MemoryCache struct {
	store     sync.Map
	stop      chan struct{}
	closeOnce sync.Once
}

type cacheItem struct {
	data       []byte
	expiration time.Time
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{stop: make(chan struct{})}

	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	go cache.cleanup(cleanupInterval)

	return cache
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	c.SetRaw(key, data, ttl)
	return nil
}

func (c *MemoryCache) SetRaw(key string, data []byte, ttl time.Duration) {
	c.store.Store(key, &cacheItem{
		data:       data,
		expiration: time.Now().Add(ttl),
	})
}

func (c *MemoryCache) Get(key string, dest interface{}) (bool, error) {
	item, exists := c.store.Load(key)
	if !exists {
		return false, nil
	}

	entry := item.(*cacheItem)
	if time.Now().After(entry.expiration) {
		c.store.Delete(key)
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return true, nil
}

func (c *MemoryCache) Exists(key string) bool {
	item, exists := c.store.Load(key)
	if !exists {
		return false
	}
	return time.Now().Before(item.(*cacheItem).expiration)
}

func (c *MemoryCache) Delete(key string) {
	c.store.Delete(key)
}

func (c *MemoryCache) DeletePattern(pattern string) int {
	deleted := 0
	c.store.Range(func(key, _ interface{}) bool {
		if matchPattern(key.(string), pattern) {
			c.store.Delete(key)
			deleted++
		}
		return true
	})
	return deleted
}

func (c *MemoryCache) Len() int {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (c *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"items": c.Len(),
		"type":  "memory",
	}
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *MemoryCache) evictExpired(now time.Time) {
	c.store.Range(func(key, value interface{}) bool {
		if now.After(value.(*cacheItem).expiration) {
			c.store.Delete(key)
		}
		return true
	})
}

func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// matchPattern supports exact keys and a single trailing '*', which is all
// the key layouts in this service need.
func matchPattern(text, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(text) >= len(prefix) && text[:len(prefix)] == prefix
	}

	return text == pattern
}
