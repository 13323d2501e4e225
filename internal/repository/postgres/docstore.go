package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/repository"
)

// DocStore implements repository.Store for one document kind.
type DocStore[E repository.Entity[E]] struct {
	db   *DB
	kind string
}

var _ repository.Store[model.Account] = (*DocStore[model.Account])(nil)

// NewDocStore constructs a document store for the given kind.
func NewDocStore[E repository.Entity[E]](db *DB, kind string) *DocStore[E] {
	return &DocStore[E]{db: db, kind: kind}
}

// FindAll returns all documents of the kind ordered by insertion.
func (s *DocStore[E]) FindAll(ctx context.Context) ([]E, error) {
	const q = `SELECT id, body FROM documents WHERE kind=$1 ORDER BY id`
	rows, err := s.db.Pool.Query(ctx, q, s.kind)
	if err != nil {
		return nil, fmt.Errorf("%s: find all: %w", s.kind, err)
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		var (
			ref  int64
			body []byte
		)
		if err := rows.Scan(&ref, &body); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.kind, err)
		}
		e, err := s.decode(ref, body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", s.kind, err)
	}
	return out, nil
}

// FindByKey selects a document by external key.
func (s *DocStore[E]) FindByKey(ctx context.Context, key uuid.UUID) (E, error) {
	const q = `SELECT id, body FROM documents WHERE kind=$1 AND key=$2`
	return s.one(s.db.Pool.QueryRow(ctx, q, s.kind, key))
}

// FindByRef selects a document by its primary key.
func (s *DocStore[E]) FindByRef(ctx context.Context, ref int64) (E, error) {
	const q = `SELECT id, body FROM documents WHERE kind=$1 AND id=$2`
	return s.one(s.db.Pool.QueryRow(ctx, q, s.kind, ref))
}

// Save upserts the document by (kind, key).
func (s *DocStore[E]) Save(ctx context.Context, e E) (E, error) {
	const q = `
INSERT INTO documents (kind, key, body, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (kind, key)
DO UPDATE SET body = EXCLUDED.body, updated_at = now()
RETURNING id`
	var zero E
	body, err := json.Marshal(e)
	if err != nil {
		return zero, fmt.Errorf("%s: encode: %w", s.kind, err)
	}
	var ref int64
	if err := s.db.Pool.QueryRow(ctx, q, s.kind, e.Key(), body).Scan(&ref); err != nil {
		if isUniqueViolation(err) {
			return zero, errs.ErrAlreadyExists
		}
		return zero, fmt.Errorf("%s: save: %w", s.kind, err)
	}
	return e.WithRef(ref), nil
}

// UpdateByRef rewrites the body of an existing document.
func (s *DocStore[E]) UpdateByRef(ctx context.Context, ref int64, e E) (E, error) {
	const q = `UPDATE documents SET body=$3, updated_at=now() WHERE kind=$1 AND id=$2`
	var zero E
	body, err := json.Marshal(e)
	if err != nil {
		return zero, fmt.Errorf("%s: encode: %w", s.kind, err)
	}
	tag, err := s.db.Pool.Exec(ctx, q, s.kind, ref, body)
	if err != nil {
		if isUniqueViolation(err) {
			return zero, errs.ErrAlreadyExists
		}
		return zero, fmt.Errorf("%s: update: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return zero, errs.ErrNotFound
	}
	return e.WithRef(ref), nil
}

// DeleteByRef removes a document by primary key.
func (s *DocStore[E]) DeleteByRef(ctx context.Context, ref int64) error {
	const q = `DELETE FROM documents WHERE kind=$1 AND id=$2`
	tag, err := s.db.Pool.Exec(ctx, q, s.kind, ref)
	if err != nil {
		return fmt.Errorf("%s: delete: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *DocStore[E]) one(row pgx.Row) (E, error) {
	var (
		zero E
		ref  int64
		body []byte
	)
	if err := row.Scan(&ref, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, errs.ErrNotFound
		}
		return zero, fmt.Errorf("%s: scan: %w", s.kind, err)
	}
	return s.decode(ref, body)
}

func (s *DocStore[E]) decode(ref int64, body []byte) (E, error) {
	var e E
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%s: decode document %d: %w", s.kind, ref, err)
	}
	return e.WithRef(ref), nil
}
