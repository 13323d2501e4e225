package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG keeps failure counters in the login_limiter table, so lockouts survive
// restarts and are shared by every server on the same database.
type PG struct {
	db     querier
	policy Policy
	now    func() time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a limiter over a pgx pool or any compatible querier.
func NewPG(q querier, p Policy) *PG {
	return &PG{db: q, policy: p, now: time.Now}
}

func (l *PG) Allow(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM login_limiter WHERE identity = $1 AND peer_hash = $2`
	var until time.Time
	switch err := l.db.QueryRow(ctx, q, identity, peerHash).Scan(&until); {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, fmt.Errorf("limiter: allow: %w", err)
	}
	if d := until.Sub(l.now()); d > 0 {
		return false, d, nil
	}
	return true, 0, nil
}

// Success forgets the pair.
func (l *PG) Success(ctx context.Context, identity string, peerHash []byte) error {
	const q = `DELETE FROM login_limiter WHERE identity = $1 AND peer_hash = $2`
	if _, err := l.db.Exec(ctx, q, identity, peerHash); err != nil {
		return fmt.Errorf("limiter: reset: %w", err)
	}
	return nil
}

// Failure counts the attempt. The counter restarts when the previous failure
// is older than Window; reaching MaxFails blocks the pair for BlockFor.
func (l *PG) Failure(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error) {
	const count = `
INSERT INTO login_limiter AS l (identity, peer_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (identity, peer_hash) DO UPDATE SET
  fail_count = CASE WHEN $3 - l.updated_at > $4::interval THEN 1 ELSE l.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	now := l.now()
	var fails int
	if err := l.db.QueryRow(ctx, count, identity, peerHash, now, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, fmt.Errorf("limiter: count failure: %w", err)
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}

	const block = `UPDATE login_limiter SET blocked_until = $3, fail_count = 0 WHERE identity = $1 AND peer_hash = $2`
	if _, err := l.db.Exec(ctx, block, identity, peerHash, now.Add(l.policy.BlockFor)); err != nil {
		return false, 0, fmt.Errorf("limiter: block: %w", err)
	}
	return true, l.policy.BlockFor, nil
}
