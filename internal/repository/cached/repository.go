// Package cached wraps a repository.Store with an in-process lookup cache
// and a pending buffer that a background task periodically promotes into
// the cache.
//
// Point lookups consult the pending buffer, then the cache, then the store.
// Full scans always go to the store. Reads served from the cache may be
// stale with respect to writes made through another process.
package cached

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/shopfloor/internal/cache"
	"github.com/and161185/shopfloor/internal/repository"
)

// Defaults applied by New when Options leave them zero.
const (
	DefaultInterval   = 5 * time.Second
	DefaultBufferSize = 1024
)

// Options configures a Repository.
type Options struct {
	// Kind names the entity collection in logs and stats.
	Kind string
	// Interval between refresh passes.
	Interval time.Duration
	// BufferSize bounds the pending buffer. Writes that do not fit go
	// straight into the cache.
	BufferSize int
	Logger     *zap.Logger
}

// Stats is a read-only snapshot for instrumentation.
type Stats struct {
	cache.Metrics
	Pending int
	Running bool
}

type pendingEntry[E any] struct {
	value E
	seq   uint64
}

// Repository is a cache-aside repository for one entity kind.
type Repository[E repository.Entity[E]] struct {
	kind     string
	store    repository.Store[E]
	cache    cache.LocalCache
	log      *zap.Logger
	interval time.Duration

	// mu guards pending, capacity, seq and epoch.
	mu       sync.Mutex
	pending  map[uuid.UUID]pendingEntry[E]
	capacity int
	seq      uint64
	epoch    uint64

	// flushMu serializes Flush with the invalidation half of Delete.
	flushMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps store with c and starts the refresh task.
func New[E repository.Entity[E]](store repository.Store[E], c cache.LocalCache, opts Options) *Repository[E] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Repository[E]{
		kind:     opts.Kind,
		store:    store,
		cache:    c,
		log:      opts.Logger.With(zap.String("repo", opts.Kind)),
		interval: opts.Interval,
		pending:  make(map[uuid.UUID]pendingEntry[E]),
		capacity: opts.BufferSize,
	}
	r.Restart()
	return r
}

// Kind returns the collection name the repository was built for.
func (r *Repository[E]) Kind() string { return r.kind }

// FindAll returns the store's full scan.
func (r *Repository[E]) FindAll(ctx context.Context) ([]E, error) {
	return r.store.FindAll(ctx)
}

// FindByKey returns the entity with the given external key.
// A store hit is offered to the pending buffer so the next refresh
// promotes it into the cache.
func (r *Repository[E]) FindByKey(ctx context.Context, key uuid.UUID) (E, error) {
	r.mu.Lock()
	if p, ok := r.pending[key]; ok {
		r.mu.Unlock()
		return p.value, nil
	}
	epoch := r.epoch
	r.mu.Unlock()

	if v, ok := r.cache.Get(key.String()); ok {
		if e, ok := v.(E); ok {
			return e, nil
		}
	}

	e, err := r.store.FindByKey(ctx, key)
	if err != nil {
		var zero E
		return zero, err
	}
	r.offer(e, epoch)
	return e, nil
}

// Save persists e and puts the stored copy into the pending buffer.
func (r *Repository[E]) Save(ctx context.Context, e E) (E, error) {
	saved, err := r.store.Save(ctx, e)
	if err != nil {
		var zero E
		return zero, err
	}
	r.put(saved)
	return saved, nil
}

// Delete removes the entity with store reference ref from the store,
// the pending buffer and the cache. It returns the deleted entity.
func (r *Repository[E]) Delete(ctx context.Context, ref int64) (E, error) {
	var zero E
	e, err := r.store.FindByRef(ctx, ref)
	if err != nil {
		return zero, err
	}
	if err := r.store.DeleteByRef(ctx, ref); err != nil {
		return zero, err
	}

	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	r.mu.Lock()
	delete(r.pending, e.Key())
	r.epoch++
	r.mu.Unlock()
	r.cache.Delete(e.Key().String())
	return e, nil
}

// UpdateStatus reads the entity by store reference, applies transform and
// writes the result back under the same reference. It fails with
// errs.ErrNotFound if the entity is deleted in between.
func (r *Repository[E]) UpdateStatus(ctx context.Context, ref int64, transform func(E) E) (E, error) {
	var zero E
	r.mu.Lock()
	epoch := r.epoch
	r.mu.Unlock()

	cur, err := r.store.FindByRef(ctx, ref)
	if err != nil {
		return zero, err
	}
	upd, err := r.store.UpdateByRef(ctx, ref, transform(cur))
	if err != nil {
		return zero, err
	}
	r.putSince(upd, epoch)
	return upd, nil
}

// Flush copies every pending entity into the cache and drops the copied
// entries from the buffer. Entries rewritten during the pass stay pending.
// It returns the number of entities copied.
func (r *Repository[E]) Flush() int {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return 0
	}
	snapshot := make(map[uuid.UUID]pendingEntry[E], len(r.pending))
	for k, p := range r.pending {
		snapshot[k] = p
	}
	r.mu.Unlock()

	for k, p := range snapshot {
		r.cache.Set(k.String(), p.value)
	}

	r.mu.Lock()
	for k, p := range snapshot {
		if cur, ok := r.pending[k]; ok && cur.seq == p.seq {
			delete(r.pending, k)
		}
	}
	r.mu.Unlock()
	return len(snapshot)
}

// Pending returns the pending buffer size.
func (r *Repository[E]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stats returns cache counters and the pending buffer size.
func (r *Repository[E]) Stats() Stats {
	return Stats{Metrics: r.cache.Metrics(), Pending: r.Pending(), Running: r.Running()}
}

// put records e in the pending buffer, replacing any older entry.
func (r *Repository[E]) put(e E) {
	key := e.Key()
	r.mu.Lock()
	if _, ok := r.pending[key]; !ok && len(r.pending) >= r.capacity {
		r.mu.Unlock()
		r.cache.Set(key.String(), e)
		return
	}
	r.seq++
	r.pending[key] = pendingEntry[E]{value: e, seq: r.seq}
	r.mu.Unlock()
}

// putSince records e like put, unless a delete happened after epoch was read.
// The cache write stays under mu so a concurrent Delete either sees it or
// bumps the epoch first.
func (r *Repository[E]) putSince(e E, epoch uint64) {
	key := e.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != epoch {
		return
	}
	if _, ok := r.pending[key]; !ok && len(r.pending) >= r.capacity {
		r.cache.Set(key.String(), e)
		return
	}
	r.seq++
	r.pending[key] = pendingEntry[E]{value: e, seq: r.seq}
}

// offer records a store read unless a newer copy is already buffered or
// cached, or a delete happened since the read started.
func (r *Repository[E]) offer(e E, epoch uint64) {
	key := e.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != epoch || len(r.pending) >= r.capacity {
		return
	}
	if _, ok := r.pending[key]; ok {
		return
	}
	if r.cache.Contains(key.String()) {
		return
	}
	r.seq++
	r.pending[key] = pendingEntry[E]{value: e, seq: r.seq}
}
