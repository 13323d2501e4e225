package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memEntry struct {
	fails        *rate.Limiter
	blockedUntil time.Time
	seen         time.Time
}

// Memory is an in-process limiter. Each (identity, peer) pair owns a token
// bucket holding MaxFails failures that refills over Window; an empty bucket
// blocks the pair for BlockFor.
type Memory struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, entries: map[string]*memEntry{}, now: time.Now}
}

func memKey(identity string, peerHash []byte) string {
	return identity + "\x00" + string(peerHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memKey(identity, peerHash)]
	if !ok {
		return true, 0, nil
	}
	if d := e.blockedUntil.Sub(m.now()); d > 0 {
		return false, d, nil
	}
	return true, 0, nil
}

// Success forgets the pair.
func (m *Memory) Success(ctx context.Context, identity string, peerHash []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey(identity, peerHash))
	return nil
}

// Failure takes one token from the pair's bucket and blocks the pair when none is left.
func (m *Memory) Failure(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)

	k := memKey(identity, peerHash)
	e, ok := m.entries[k]
	if !ok {
		every := rate.Every(m.policy.Window / time.Duration(max(m.policy.MaxFails, 1)))
		// One token is kept in reserve so the MaxFails-th failure drains the bucket.
		e = &memEntry{fails: rate.NewLimiter(every, max(m.policy.MaxFails-1, 1))}
		m.entries[k] = e
	}
	e.seen = now
	if m.policy.MaxFails > 1 && e.fails.AllowN(now, 1) {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(m.policy.BlockFor)
	return true, m.policy.BlockFor, nil
}

// sweep drops pairs that are neither blocked nor recently active.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.blockedUntil) && now.Sub(e.seen) > m.policy.Window {
			delete(m.entries, k)
		}
	}
}
