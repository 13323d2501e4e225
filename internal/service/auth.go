// Package service contains the account and authentication service used by
// LOGIN, REGISTER and account creation.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/shopfloor/internal/crypto"
	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/limiter"
	"github.com/and161185/shopfloor/internal/model"
)

// AccountStore is the part of the account repository the service needs.
type AccountStore interface {
	FindAll(ctx context.Context) ([]model.Account, error)
	Save(ctx context.Context, a model.Account) (model.Account, error)
}

// TokenIssuer issues bearer tokens.
type TokenIssuer interface {
	Issue(subject uuid.UUID, role model.Role) (string, error)
}

// AuthService implements credential checks, registration and login.
type AuthService struct {
	accounts AccountStore
	tokens   TokenIssuer
	hasher   *pkgcrypto.Hasher
	lim      limiter.Limiter

	// createMu makes the email check and save of CreateAccount atomic within the process.
	createMu sync.Mutex
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts AccountStore, tokens TokenIssuer, hasher *pkgcrypto.Hasher, lim limiter.Limiter) *AuthService {
	return &AuthService{accounts: accounts, tokens: tokens, hasher: hasher, lim: lim, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns the account registered under email.
func (s *AuthService) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	all, err := s.accounts.FindAll(ctx)
	if err != nil {
		return model.Account{}, err
	}
	email = normalizeEmail(email)
	for _, a := range all {
		if normalizeEmail(a.Email) == email {
			return a, nil
		}
	}
	return model.Account{}, errs.ErrNotFound
}

// Verify checks email and password. Unknown and inactive accounts are reported
// as a failed check, not as an error.
func (s *AuthService) Verify(ctx context.Context, email, password string) (model.Account, bool, error) {
	a, err := s.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, err
	}
	if !a.Active || !s.hasher.Verify(password, a.SaltAuth, a.PwdHash) {
		return model.Account{}, false, nil
	}
	return a, true, nil
}

// Login authenticates with rate limiting by (email, peer) and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password, peer string) (model.Account, string, error) {
	email = normalizeEmail(email)
	peerHash := limiter.HashPeer(peer)

	allowed, _, err := s.lim.Allow(ctx, email, peerHash)
	if err != nil {
		return model.Account{}, "", err
	}
	if !allowed {
		return model.Account{}, "", errs.ErrRateLimited
	}

	a, ok, err := s.Verify(ctx, email, password)
	if err != nil {
		return model.Account{}, "", err
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, peerHash); ferr == nil && blocked {
			return model.Account{}, "", errs.ErrRateLimited
		}
		return model.Account{}, "", errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, email, peerHash)

	tok, err := s.tokens.Issue(a.ID, a.Role)
	if err != nil {
		return model.Account{}, "", err
	}
	return a, tok, nil
}

// Register creates an active CLIENT account and issues a token for it.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (model.Account, string, error) {
	if name == "" {
		name = email
	}
	a, err := s.CreateAccount(ctx, model.Account{Email: email, Name: name, Role: model.RoleClient}, password)
	if err != nil {
		return model.Account{}, "", err
	}
	tok, err := s.tokens.Issue(a.ID, a.Role)
	if err != nil {
		return model.Account{}, "", err
	}
	return a, tok, nil
}

// CreateAccount hashes password into a, assigns an id when missing and saves
// the account as active. It fails with errs.ErrAlreadyExists if the email is taken.
func (s *AuthService) CreateAccount(ctx context.Context, a model.Account, password string) (model.Account, error) {
	if password == "" || strings.TrimSpace(a.Email) == "" || !a.Role.Valid() {
		return model.Account{}, errs.ErrInvalidFields
	}
	a.Email = normalizeEmail(a.Email)
	if a.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return model.Account{}, err
		}
		a.ID = id
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return model.Account{}, err
	}
	a.PwdHash, a.SaltAuth = hash, salt
	a.Active = true
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	if _, err := s.FindByEmail(ctx, a.Email); err == nil {
		return model.Account{}, errs.ErrAlreadyExists
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Account{}, err
	}
	return s.accounts.Save(ctx, a)
}

// EnsureAdmin creates an ADMIN account for email unless an account with that
// email already exists. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.CreateAccount(ctx, model.Account{Email: email, Name: "admin", Role: model.RoleAdmin}, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrAlreadyExists):
		return false, nil
	default:
		return false, err
	}
}
