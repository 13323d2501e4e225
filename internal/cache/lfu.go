package cache

import (
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LFU is a local cache backed by ristretto. Every entry costs 1, so the
// configured cost bound is an item bound.
type LFU struct {
	cache     *ristretto.Cache
	ttl       time.Duration
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLFU creates a ristretto-based cache.
func NewLFU(maxItems int, ttl time.Duration) (*LFU, error) {
	if maxItems == 0 {
		maxItems = DefaultMaxItems
	}
	lc := &LFU{ttl: ttl}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxItems) * 10,
		MaxCost:            int64(maxItems),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(*ristretto.Item) {
			lc.evictions.Add(1)
		},
	})
	if err != nil {
		return nil, err
	}
	lc.cache = c
	return lc, nil
}

// Get retrieves a value from the cache.
func (lc *LFU) Get(key string) (any, bool) {
	value, found := lc.cache.Get(key)
	if found {
		lc.hits.Add(1)
	} else {
		lc.misses.Add(1)
	}
	return value, found
}

// Contains reports presence without counting a hit or miss.
func (lc *LFU) Contains(key string) bool {
	_, ok := lc.cache.Get(key)
	return ok
}

// Set stores a value and waits for ristretto's write buffer to drain, so a
// following Get observes it. The admission policy may still drop the entry.
func (lc *LFU) Set(key string, value any) bool {
	ok := lc.cache.SetWithTTL(key, value, 1, lc.ttl)
	lc.cache.Wait()
	return ok
}

// Delete removes a value from the cache.
func (lc *LFU) Delete(key string) {
	lc.cache.Del(key)
	lc.cache.Wait()
}

// Clear removes all values from the cache.
func (lc *LFU) Clear() {
	lc.cache.Clear()
}

// Close stops ristretto's background goroutines.
func (lc *LFU) Close() {
	lc.cache.Close()
}

// Metrics returns cache metrics.
func (lc *LFU) Metrics() Metrics {
	return Metrics{
		Hits:      lc.hits.Load(),
		Misses:    lc.misses.Load(),
		Evictions: lc.evictions.Load(),
		Capacity:  lc.cache.MaxCost(),
	}
}
