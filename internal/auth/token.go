// Package auth issues and validates the bearer tokens presented with requests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/shopfloor/internal/model"
)

// Messages returned with rejected tokens.
const (
	MsgNoToken      = "No token detected"
	MsgInvalidToken = "Invalid token"
	MsgForbidden    = "You are not allowed to do this"
)

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// Outcome classifies a validation result.
type Outcome int

// Validation outcomes.
const (
	Authorized Outcome = iota
	Unauthorized
	Forbidden
)

// Result is the outcome of Validate. Subject and Role are set when authorized;
// Message is set otherwise.
type Result struct {
	Outcome Outcome
	Subject uuid.UUID
	Role    model.Role
	Message string
}

// Code maps the outcome to a response code.
func (r Result) Code() int {
	switch r.Outcome {
	case Unauthorized:
		return 401
	case Forbidden:
		return 403
	default:
		return 200
	}
}

// TokenService signs tokens with HS256.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenService constructs a service. ttl 0 issues tokens without expiry.
func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("auth: empty signing key")
	}
	return &TokenService{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token for subject with role.
func (s *TokenService) Issue(subject uuid.UUID, role model.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("auth: invalid role %d", role)
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: role,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.key)
}

// Validate checks token and compares its role against required.
func (s *TokenService) Validate(token string, required model.Role) Result {
	if token == "" {
		return Result{Outcome: Unauthorized, Message: MsgNoToken}
	}
	claims, err := s.parse(token)
	if err != nil {
		return Result{Outcome: Unauthorized, Message: MsgInvalidToken}
	}
	sub, err := uuid.FromString(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Result{Outcome: Unauthorized, Message: MsgInvalidToken}
	}
	if !claims.Role.Satisfies(required) {
		return Result{Outcome: Forbidden, Message: MsgForbidden}
	}
	return Result{Outcome: Authorized, Subject: sub, Role: claims.Role}
}

func (s *TokenService) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
