// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Params tunes Argon2id.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// Hasher derives and checks Argon2id password hashes.
type Hasher struct {
	p Params
}

// NewHasher constructs a Hasher; zero-valued params fall back to DefaultParams.
func NewHasher(p Params) *Hasher {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 || p.KeyLen == 0 || p.SaltLen <= 0 {
		p = DefaultParams
	}
	return &Hasher{p: p}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash returns the Argon2id hash of password under a fresh random salt.
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	if password == "" {
		return nil, nil, errors.New("empty password")
	}
	salt, err = RandBytes(h.p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive([]byte(password), salt), salt, nil
}

// Verify checks password against the expected hash and salt in constant time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	got := h.derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

func (h *Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}
