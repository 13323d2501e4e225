// Package memory provides an in-process repository.Store used in development mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/repository"
)

// Store keeps documents in maps guarded by a mutex.
type Store[E repository.Entity[E]] struct {
	mu    sync.RWMutex
	seq   int64
	byRef map[int64]E
	refs  map[uuid.UUID]int64
}

// New constructs an empty store.
func New[E repository.Entity[E]]() *Store[E] {
	return &Store[E]{byRef: map[int64]E{}, refs: map[uuid.UUID]int64{}}
}

// FindAll returns all entities ordered by reference.
func (s *Store[E]) FindAll(ctx context.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]E, 0, len(s.byRef))
	for _, e := range s.byRef {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref() < out[j].Ref() })
	return out, nil
}

// FindByKey looks an entity up by external key.
func (s *Store[E]) FindByKey(ctx context.Context, key uuid.UUID) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[key]
	if !ok {
		return zero, errs.ErrNotFound
	}
	return s.byRef[ref], nil
}

// FindByRef looks an entity up by reference.
func (s *Store[E]) FindByRef(ctx context.Context, ref int64) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byRef[ref]
	if !ok {
		return zero, errs.ErrNotFound
	}
	return e, nil
}

// Save upserts by external key, keeping the reference of an existing entity.
func (s *Store[E]) Save(ctx context.Context, e E) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[e.Key()]
	if !ok {
		s.seq++
		ref = s.seq
		s.refs[e.Key()] = ref
	}
	e = e.WithRef(ref)
	s.byRef[ref] = e
	return e, nil
}

// UpdateByRef replaces the entity under ref if it still exists.
func (s *Store[E]) UpdateByRef(ctx context.Context, ref int64, e E) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byRef[ref]
	if !ok || cur.Key() != e.Key() {
		return zero, errs.ErrNotFound
	}
	e = e.WithRef(ref)
	s.byRef[ref] = e
	return e, nil
}

// DeleteByRef removes an entity by reference.
func (s *Store[E]) DeleteByRef(ctx context.Context, ref int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byRef[ref]
	if !ok {
		return errs.ErrNotFound
	}
	delete(s.byRef, ref)
	delete(s.refs, e.Key())
	return nil
}
