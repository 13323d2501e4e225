package main

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/shopfloor/internal/cache"
	"github.com/and161185/shopfloor/internal/config"
	"github.com/and161185/shopfloor/internal/repository"
	"github.com/and161185/shopfloor/internal/repository/cached"
	"github.com/and161185/shopfloor/internal/repository/memory"
	"github.com/and161185/shopfloor/internal/repository/postgres"
	"github.com/and161185/shopfloor/internal/repository/redisstore"
)

const redisPrefix = "shopfloor"

// backend holds the connection of the selected store; both nil means memory.
type backend struct {
	pg  *postgres.DB
	rdb redis.Cmdable
}

func openStore[E repository.Entity[E]](b backend, kind string) repository.Store[E] {
	switch {
	case b.pg != nil:
		return postgres.NewDocStore[E](b.pg, kind)
	case b.rdb != nil:
		return redisstore.New[E](b.rdb, redisPrefix, kind)
	default:
		return memory.New[E]()
	}
}

func newRepo[E repository.Entity[E]](b backend, kind string, cfg config.Config, log *zap.Logger) (*cached.Repository[E], error) {
	c, err := cache.New(cache.Config{Engine: cfg.CacheEngine, MaxItems: cfg.CacheSize, TTL: cfg.CacheTTL})
	if err != nil {
		return nil, err
	}
	return cached.New(openStore[E](b, kind), c, cached.Options{
		Kind:       kind,
		Interval:   cfg.RefreshInterval,
		BufferSize: cfg.BufferSize,
		Logger:     log,
	}), nil
}

func mustRepo[E repository.Entity[E]](b backend, kind string, cfg config.Config, log *zap.Logger) *cached.Repository[E] {
	r, err := newRepo[E](b, kind, cfg, log)
	if err != nil {
		log.Fatal("cache", zap.String("kind", kind), zap.Error(err))
	}
	return r
}
