// Package cache provides the in-process lookup caches that sit in front of
// the persistent store. Two engines are available: an LRU with optional TTL
// (golang-lru expirable) and an admission-controlled LFU (ristretto).
package cache

import (
	"fmt"
	"time"
)

// LocalCache is a thread-safe in-process key/value cache.
type LocalCache interface {
	// Get retrieves a value from the cache.
	Get(key string) (any, bool)

	// Contains reports whether key is cached without touching the
	// hit/miss counters or recency.
	Contains(key string) bool

	// Set stores a value. The write is visible to Get once Set returns.
	Set(key string, value any) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases resources held by the cache.
	Close()

	// Metrics returns cache metrics.
	Metrics() Metrics
}

// Metrics represents local cache counters.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Capacity  int64
}

// Engines.
const (
	EngineLRU = "lru"
	EngineLFU = "lfu"
)

// Config selects and sizes a cache engine.
type Config struct {
	// Engine is "lru" (default) or "lfu".
	Engine string
	// MaxItems bounds the number of entries; 0 means unbounded for LRU
	// and DefaultMaxItems for LFU.
	MaxItems int
	// TTL expires entries after the given duration; 0 disables expiry.
	TTL time.Duration
}

// DefaultMaxItems is used by the LFU engine when no bound is configured.
const DefaultMaxItems = 10_000

// New creates a cache for cfg.
func New(cfg Config) (LocalCache, error) {
	if cfg.MaxItems < 0 || cfg.TTL < 0 {
		return nil, fmt.Errorf("cache: negative size or ttl")
	}
	switch cfg.Engine {
	case "", EngineLRU:
		return NewLRU(cfg.MaxItems, cfg.TTL), nil
	case EngineLFU:
		return NewLFU(cfg.MaxItems, cfg.TTL)
	default:
		return nil, fmt.Errorf("cache: unknown engine %q", cfg.Engine)
	}
}
