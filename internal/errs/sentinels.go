// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a uniqueness violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidFields indicates a payload rejected by the field validator.
	ErrInvalidFields = errors.New("invalid fields")
)
