package prices

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     float64
	expiresAt time.Time
}

// priceCache is a tiny in-process TTL cache for provider responses.
type priceCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cacheEntry
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{ttl: ttl, m: make(map[string]cacheEntry)}
}

func (c *priceCache) get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.m, key)
		return 0, false
	}
	return e.value, true
}

func (c *priceCache) set(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}
