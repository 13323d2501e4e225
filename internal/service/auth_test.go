package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/shopfloor/internal/crypto"
	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/limiter"
	"github.com/and161185/shopfloor/internal/model"
)

type fakeAccounts struct {
	saved   []model.Account
	findErr error
	saveErr error
}

var _ AccountStore = (*fakeAccounts)(nil)

func (f *fakeAccounts) FindAll(context.Context) ([]model.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return append([]model.Account(nil), f.saved...), nil
}

func (f *fakeAccounts) Save(_ context.Context, a model.Account) (model.Account, error) {
	if f.saveErr != nil {
		return model.Account{}, f.saveErr
	}
	a.StoreID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, a)
	return a, nil
}

type fakeTokens struct{ err error }

func (f fakeTokens) Issue(sub uuid.UUID, role model.Role) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return role.String() + ":" + sub.String(), nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

var cheap = pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

func newService(accs *fakeAccounts, lim *fakeLimiter) *AuthService {
	return NewAuthService(accs, fakeTokens{}, pkgcrypto.NewHasher(cheap), lim)
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	accs := &fakeAccounts{}
	s := newService(accs, &fakeLimiter{})
	ctx := context.Background()

	if _, _, err := s.Register(ctx, "", "", ""); !errors.Is(err, errs.ErrInvalidFields) {
		t.Fatalf("want ErrInvalidFields on empty email/password, got %v", err)
	}

	a, tok, err := s.Register(ctx, " Alice@Example.io ", "password1", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if a.Email != "alice@example.io" || a.Role != model.RoleClient || !a.Active || a.ID == uuid.Nil {
		t.Fatalf("unexpected account: %+v", a)
	}
	if a.Name != "alice@example.io" {
		t.Fatalf("name must default to email, got %q", a.Name)
	}
	if tok != "CLIENT:"+a.ID.String() {
		t.Fatalf("unexpected token %q", tok)
	}

	if _, _, err := s.Register(ctx, "ALICE@example.io", "password2", "x"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate email, got %v", err)
	}

	accs.saveErr = errors.New("boom")
	if _, _, err := s.Register(ctx, "bob@example.io", "password1", "Bob"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	accs := &fakeAccounts{}
	lim := &fakeLimiter{allowOK: true}
	s := newService(accs, lim)
	ctx := context.Background()

	alice, err := s.CreateAccount(ctx, model.Account{Email: "alice@x.io", Name: "Alice", Role: model.RoleWorker}, "correct-horse")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.Login(ctx, "alice@x.io", "correct-horse", "1.2.3.4:5"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.Login(ctx, "alice@x.io", "correct-horse", "1.2.3.4:5"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, _, err := s.Login(ctx, "nope@x.io", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing account, got %v", err)
	}

	lim.failBlocked = true
	if _, _, err := s.Login(ctx, "alice@x.io", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, _, err := s.Login(ctx, "alice@x.io", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	got, tok, err := s.Login(ctx, "ALICE@x.io", "correct-horse", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("Login success: %v", err)
	}
	if got.ID != alice.ID || tok != "WORKER:"+alice.ID.String() {
		t.Fatalf("bad login result: %+v %q", got, tok)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Verify_InactiveAndStoreErrors(t *testing.T) {
	t.Parallel()

	accs := &fakeAccounts{}
	s := newService(accs, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, model.Account{Email: "w@x.io", Name: "W", Role: model.RoleWorker}, "password1")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, ok, err := s.Verify(ctx, "w@x.io", "password1"); err != nil || !ok {
		t.Fatalf("Verify active: ok=%v err=%v", ok, err)
	}

	accs.saved[0] = a.Deactivate()
	if _, ok, err := s.Verify(ctx, "w@x.io", "password1"); err != nil || ok {
		t.Fatalf("inactive account must fail verification: ok=%v err=%v", ok, err)
	}

	accs.findErr = errors.New("down")
	if _, _, err := s.Verify(ctx, "w@x.io", "password1"); err == nil {
		t.Fatalf("want store error")
	}
}

func TestAuth_EnsureAdmin(t *testing.T) {
	t.Parallel()

	accs := &fakeAccounts{}
	s := newService(accs, &fakeLimiter{})
	ctx := context.Background()

	created, err := s.EnsureAdmin(ctx, "root@x.io", "password1")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin: created=%v err=%v", created, err)
	}
	if accs.saved[0].Role != model.RoleAdmin {
		t.Fatalf("want ADMIN role, got %s", accs.saved[0].Role)
	}

	created, err = s.EnsureAdmin(ctx, "root@x.io", "password1")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin: created=%v err=%v", created, err)
	}
	if len(accs.saved) != 1 {
		t.Fatalf("want one account, got %d", len(accs.saved))
	}
}

func TestAuth_TokenErrorPropagates(t *testing.T) {
	t.Parallel()

	s := NewAuthService(&fakeAccounts{}, fakeTokens{err: errors.New("sign")}, pkgcrypto.NewHasher(cheap), &fakeLimiter{})
	if _, _, err := s.Register(context.Background(), "a@x.io", "password1", "A"); err == nil {
		t.Fatalf("want token error")
	}
}
