package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a local LRU cache with optional TTL backed by golang-lru.
type LRU struct {
	cache     *expirable.LRU[string, any]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	maxItems  int64
}

// NewLRU creates an LRU cache; maxItems 0 disables the size bound and ttl 0 disables expiry.
func NewLRU(maxItems int, ttl time.Duration) *LRU {
	lc := &LRU{maxItems: int64(maxItems)}
	lc.cache = expirable.NewLRU[string, any](maxItems, func(string, any) {
		lc.evictions.Add(1)
	}, ttl)
	return lc
}

// Get retrieves a value from the cache.
func (lc *LRU) Get(key string) (any, bool) {
	value, found := lc.cache.Get(key)
	if found {
		lc.hits.Add(1)
	} else {
		lc.misses.Add(1)
	}
	return value, found
}

// Contains reports presence without counting a hit or miss.
func (lc *LRU) Contains(key string) bool {
	return lc.cache.Contains(key)
}

// Set stores a value in the cache.
func (lc *LRU) Set(key string, value any) bool {
	lc.cache.Add(key, value)
	return true
}

// Delete removes a value from the cache.
func (lc *LRU) Delete(key string) {
	lc.cache.Remove(key)
}

// Clear removes all values from the cache.
func (lc *LRU) Clear() {
	lc.cache.Purge()
}

// Close purges the cache.
func (lc *LRU) Close() {
	lc.cache.Purge()
}

// Metrics returns cache metrics.
func (lc *LRU) Metrics() Metrics {
	return Metrics{
		Hits:      lc.hits.Load(),
		Misses:    lc.misses.Load(),
		Evictions: lc.evictions.Load(),
		Capacity:  lc.maxItems,
	}
}
