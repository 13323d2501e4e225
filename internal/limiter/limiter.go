// Package limiter throttles failed logins per (identity, peer) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, identity string, peerHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, identity string, peerHash []byte) (bool, time.Duration, error)
}

// Policy is shared by the limiter implementations.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per 15 minutes, then blocks for 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashPeer returns a stable hash of the peer host so raw addresses are never stored.
// The port is dropped; every connection uses a fresh one.
func HashPeer(addr string) []byte {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	h := sha256.Sum256([]byte(host))
	return h[:]
}
