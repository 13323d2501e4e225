// Package redisstore implements repository.Store on Redis hashes.
//
// Layout per kind:
//
//	<prefix>:<kind>:docs  hash  ref -> JSON document
//	<prefix>:<kind>:keys  hash  external key -> ref
//	<prefix>:<kind>:seq   counter for new refs
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"

	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/repository"
)

// Connect creates a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Store keeps documents of one kind in Redis.
type Store[E repository.Entity[E]] struct {
	rdb  redis.Cmdable
	docs string
	keys string
	seq  string
	kind string
}

var _ repository.Store[model.Order] = (*Store[model.Order])(nil)

// New constructs a store for kind under the given key prefix.
func New[E repository.Entity[E]](rdb redis.Cmdable, prefix, kind string) *Store[E] {
	base := prefix + ":" + kind
	return &Store[E]{
		rdb:  rdb,
		docs: base + ":docs",
		keys: base + ":keys",
		seq:  base + ":seq",
		kind: kind,
	}
}

// FindAll returns all documents ordered by ref.
func (s *Store[E]) FindAll(ctx context.Context) ([]E, error) {
	raw, err := s.rdb.HGetAll(ctx, s.docs).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: find all: %w", s.kind, err)
	}
	out := make([]E, 0, len(raw))
	for field, body := range raw {
		ref, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad ref %q: %w", s.kind, field, err)
		}
		e, err := s.decode(ref, []byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref() < out[j].Ref() })
	return out, nil
}

// FindByKey resolves the ref of key and loads the document.
func (s *Store[E]) FindByKey(ctx context.Context, key uuid.UUID) (E, error) {
	var zero E
	ref, err := s.rdb.HGet(ctx, s.keys, key.String()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, errs.ErrNotFound
		}
		return zero, fmt.Errorf("%s: resolve key: %w", s.kind, err)
	}
	return s.FindByRef(ctx, ref)
}

// FindByRef loads a document by ref.
func (s *Store[E]) FindByRef(ctx context.Context, ref int64) (E, error) {
	var zero E
	body, err := s.rdb.HGet(ctx, s.docs, strconv.FormatInt(ref, 10)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, errs.ErrNotFound
		}
		return zero, fmt.Errorf("%s: find: %w", s.kind, err)
	}
	return s.decode(ref, body)
}

// Save upserts by external key. A new key claims a ref with HSETNX so that
// concurrent first saves of the same key agree on one ref.
func (s *Store[E]) Save(ctx context.Context, e E) (E, error) {
	var zero E
	body, err := json.Marshal(e)
	if err != nil {
		return zero, fmt.Errorf("%s: encode: %w", s.kind, err)
	}

	ref, err := s.refFor(ctx, e.Key())
	if err != nil {
		return zero, err
	}
	if err := s.rdb.HSet(ctx, s.docs, strconv.FormatInt(ref, 10), body).Err(); err != nil {
		return zero, fmt.Errorf("%s: save: %w", s.kind, err)
	}
	return e.WithRef(ref), nil
}

// replaceIfPresent sets docs[ref] only when the field already exists.
var replaceIfPresent = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// UpdateByRef overwrites an existing document atomically.
func (s *Store[E]) UpdateByRef(ctx context.Context, ref int64, e E) (E, error) {
	var zero E
	body, err := json.Marshal(e)
	if err != nil {
		return zero, fmt.Errorf("%s: encode: %w", s.kind, err)
	}
	n, err := replaceIfPresent.Run(ctx, s.rdb, []string{s.docs}, strconv.FormatInt(ref, 10), body).Int()
	if err != nil {
		return zero, fmt.Errorf("%s: update: %w", s.kind, err)
	}
	if n == 0 {
		return zero, errs.ErrNotFound
	}
	return e.WithRef(ref), nil
}

// DeleteByRef removes the document and its key index entry.
func (s *Store[E]) DeleteByRef(ctx context.Context, ref int64) error {
	e, err := s.FindByRef(ctx, ref)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.docs, strconv.FormatInt(ref, 10))
		p.HDel(ctx, s.keys, e.Key().String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: delete: %w", s.kind, err)
	}
	return nil
}

func (s *Store[E]) refFor(ctx context.Context, key uuid.UUID) (int64, error) {
	ref, err := s.rdb.HGet(ctx, s.keys, key.String()).Int64()
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%s: resolve key: %w", s.kind, err)
	}

	next, err := s.rdb.Incr(ctx, s.seq).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: next ref: %w", s.kind, err)
	}
	claimed, err := s.rdb.HSetNX(ctx, s.keys, key.String(), next).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: claim ref: %w", s.kind, err)
	}
	if claimed {
		return next, nil
	}
	// lost the race to a concurrent save of the same key
	ref, err = s.rdb.HGet(ctx, s.keys, key.String()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: resolve key: %w", s.kind, err)
	}
	return ref, nil
}

func (s *Store[E]) decode(ref int64, body []byte) (E, error) {
	var e E
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%s: decode document %d: %w", s.kind, ref, err)
	}
	return e.WithRef(ref), nil
}
