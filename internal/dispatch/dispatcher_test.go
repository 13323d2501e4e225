package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/shopfloor/internal/auth"
	"github.com/and161185/shopfloor/internal/cache"
	pkgcrypto "github.com/and161185/shopfloor/internal/crypto"
	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/limiter"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
	"github.com/and161185/shopfloor/internal/repository"
	"github.com/and161185/shopfloor/internal/repository/cached"
	"github.com/and161185/shopfloor/internal/repository/memory"
	"github.com/and161185/shopfloor/internal/service"
	"github.com/and161185/shopfloor/internal/validate"
)

type env struct {
	d      *Dispatcher
	tokens *auth.TokenService
	repos  Repos
}

func newCached[E repository.Entity[E]](t *testing.T, kind string) *cached.Repository[E] {
	t.Helper()
	r := cached.New[E](memory.New[E](), cache.NewLRU(0, 0), cached.Options{Kind: kind, Interval: time.Hour})
	t.Cleanup(r.Close)
	return r
}

func newEnv(t *testing.T, override func(*Repos)) *env {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte("dispatch-test"), time.Hour)
	require.NoError(t, err)

	accounts := newCached[model.Account](t, repository.KindAccounts)
	repos := Repos{
		Accounts:  accounts,
		Items:     newCached[model.InventoryItem](t, repository.KindItems),
		Devices:   newCached[model.Device](t, repository.KindDevices),
		WorkItems: newCached[model.WorkItem](t, repository.KindWorkItems),
		Orders:    newCached[model.Order](t, repository.KindOrders),
		Shifts:    newCached[model.Shift](t, repository.KindShifts),
	}
	if override != nil {
		override(&repos)
	}
	hasher := pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	svc := service.NewAuthService(accounts, tokens, hasher, limiter.NewMemory(limiter.DefaultPolicy))
	d := New(Deps{
		Repos:     repos,
		Tokens:    tokens,
		Accounts:  svc,
		Validator: validate.New(),
		Logger:    zaptest.NewLogger(t),
	})
	return &env{d: d, tokens: tokens, repos: repos}
}

func (e *env) token(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := e.tokens.Issue(uuid.Must(uuid.NewV4()), role)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, code int, token string, body any) protocol.Response {
	t.Helper()
	var s string
	switch b := body.(type) {
	case nil:
	case string:
		s = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		s = string(raw)
	}
	return e.d.Dispatch(context.Background(), code, token, s)
}

// fakeItems counts saves and can fail the second step of delete.
type fakeItems struct {
	Repo[model.InventoryItem]
	saves     int
	deleteErr error
	findAll   error
}

func (f *fakeItems) Save(ctx context.Context, i model.InventoryItem) (model.InventoryItem, error) {
	f.saves++
	return f.Repo.Save(ctx, i)
}

func (f *fakeItems) Delete(ctx context.Context, ref int64) (model.InventoryItem, error) {
	if f.deleteErr != nil {
		return model.InventoryItem{}, f.deleteErr
	}
	return f.Repo.Delete(ctx, ref)
}

func (f *fakeItems) FindAll(ctx context.Context) ([]model.InventoryItem, error) {
	if f.findAll != nil {
		return nil, f.findAll
	}
	return f.Repo.FindAll(ctx)
}

func TestDispatch_UnknownCode(t *testing.T) {
	e := newEnv(t, nil)
	admin := e.token(t, model.RoleAdmin)
	for _, code := range []int{99, 0, -1, 16, 64, 70, 100} {
		for _, tok := range []string{"", admin} {
			require.Equal(t, protocol.Error(400, MsgNoCode), e.do(t, code, tok, "anything"), "code %d", code)
		}
	}
}

func TestDispatch_ActionTable(t *testing.T) {
	e := newEnv(t, nil)
	want := []int{11, 12, 13, 14, 15, 21, 22, 23, 24, 25, 31, 32, 33, 34, 35, 41, 42, 43, 44, 45, 51, 52, 53, 54, 55, 61, 62, 63, 65}
	require.Equal(t, want, e.d.Codes())

	roles := map[int]model.Role{
		13: model.RoleAdmin, 14: model.RoleAdmin, 15: model.RoleAdmin,
		23: model.RoleWorker, 24: model.RoleWorker, 25: model.RoleAdmin,
		33: model.RoleAdmin, 34: model.RoleAdmin, 35: model.RoleAdmin,
		43: model.RoleWorker, 44: model.RoleWorker, 45: model.RoleAdmin,
		53: model.RoleClient, 54: model.RoleWorker, 55: model.RoleAdmin,
		63: model.RoleAdmin, 65: model.RoleAdmin,
	}
	for _, code := range want {
		got, ok := e.d.RequiredRole(code)
		require.True(t, ok)
		require.Equal(t, roles[code], got, "code %d", code)
	}
}

func TestDispatch_AuthorizationIndependentOfBody(t *testing.T) {
	e := newEnv(t, nil)
	client := e.token(t, model.RoleClient)
	worker := e.token(t, model.RoleWorker)
	bodies := []string{"", "garbage", `{"sku":"x"}`, uuid.Must(uuid.NewV4()).String()}

	for _, code := range e.d.Codes() {
		need, _ := e.d.RequiredRole(code)
		if need == 0 {
			continue
		}
		for _, body := range bodies {
			require.Equal(t, protocol.Error(401, auth.MsgNoToken), e.do(t, code, "", body), "code %d", code)
			require.Equal(t, protocol.Error(401, auth.MsgInvalidToken), e.do(t, code, "x.y.z", body), "code %d", code)
			if need > model.RoleClient {
				require.Equal(t, protocol.Error(403, auth.MsgForbidden), e.do(t, code, client, body), "code %d", code)
			}
			if need > model.RoleWorker {
				require.Equal(t, protocol.Error(403, auth.MsgForbidden), e.do(t, code, worker, body), "code %d", code)
			}
		}
	}
}

func TestDispatch_ListEmptyThenOne(t *testing.T) {
	e := newEnv(t, nil)
	worker := e.token(t, model.RoleWorker)

	require.Equal(t, protocol.Error(404, "No inventory items found."), e.do(t, 21, "", nil))

	created := e.do(t, 23, worker, protocol.InventoryItem{SKU: "B-1", Name: "bolt", Quantity: 10, Available: true})
	require.Equal(t, 201, created.Code, created.Message)
	item := created.Data.(protocol.InventoryItem)
	require.NotEmpty(t, item.ID)

	list := e.do(t, 21, "", nil)
	require.Equal(t, 200, list.Code)
	require.Equal(t, protocol.InventoryItemList{Items: []protocol.InventoryItem{item}}, list.Data)

	require.Equal(t, 200, e.do(t, 21, "", "true").Code)
	require.Equal(t, protocol.Error(404, "No inventory items found."), e.do(t, 21, "", "false"))
	require.Equal(t, protocol.Error(400, "Invalid body for request code 21."), e.do(t, 21, "", "maybe"))
}

func TestDispatch_GetAndInvalidBodies(t *testing.T) {
	e := newEnv(t, nil)
	admin := e.token(t, model.RoleAdmin)

	require.Equal(t, protocol.Error(400, "Invalid body for request code 32."), e.do(t, 32, "", "nope"))
	require.Equal(t, protocol.Error(400, "Invalid body for request code 32."), e.do(t, 32, "", ""))
	require.Equal(t, protocol.Error(404, "Device not found."), e.do(t, 32, "", uuid.Must(uuid.NewV4()).String()))
	require.Equal(t, protocol.Error(400, "Invalid body for request code 33."), e.do(t, 33, admin, "{not json"))
	require.Equal(t, protocol.Error(400, "Invalid body for request code 33."), e.do(t, 33, admin, ""))

	created := e.do(t, 33, admin, protocol.Device{Serial: "SN-1", Model: "Press"})
	require.Equal(t, 201, created.Code, created.Message)
	dev := created.Data.(protocol.Device)
	require.True(t, dev.Active)
	require.False(t, dev.RegisteredAt.IsZero())

	got := e.do(t, 32, "", " "+dev.ID+" ")
	require.Equal(t, protocol.Success(200, dev), got)

	dup := e.do(t, 33, admin, protocol.Device{ID: dev.ID, Serial: "SN-2", Model: "Press"})
	require.Equal(t, protocol.Error(400, "Device already exists."), dup)
}

func TestDispatch_IncorrectFieldsNeverSaves(t *testing.T) {
	var fake *fakeItems
	e := newEnv(t, func(r *Repos) {
		fake = &fakeItems{Repo: r.Items}
		r.Items = fake
	})
	worker := e.token(t, model.RoleWorker)

	for _, bad := range []protocol.InventoryItem{
		{Name: "no sku"},
		{SKU: "S", Name: "n", Quantity: -4},
		{ID: "not-a-uuid", SKU: "S", Name: "n"},
	} {
		require.Equal(t, protocol.Error(400, MsgIncorrect), e.do(t, 23, worker, bad))
	}
	require.Zero(t, fake.saves)
}

func TestDispatch_DeleteTwice(t *testing.T) {
	e := newEnv(t, nil)
	admin := e.token(t, model.RoleAdmin)

	created := e.do(t, 63, admin, protocol.Shift{
		WorkerID: uuid.Must(uuid.NewV4()).String(),
		StartsAt: time.Now().UTC().Truncate(time.Second),
		EndsAt:   time.Now().UTC().Truncate(time.Second).Add(8 * time.Hour),
	})
	require.Equal(t, 201, created.Code, created.Message)
	id := created.Data.(protocol.Shift).ID

	first := e.do(t, 65, admin, id)
	require.Equal(t, 200, first.Code)
	require.Equal(t, id, first.Data.(protocol.Shift).ID)

	require.Equal(t, protocol.Error(404, "Shift not found."), e.do(t, 65, admin, id))
	require.Equal(t, protocol.Error(404, "Shift not found."), e.do(t, 62, "", id))
	require.Equal(t, protocol.Error(400, MsgNoCode), e.do(t, 64, admin, id))
}

func TestDispatch_SecondStepFailures(t *testing.T) {
	var fake *fakeItems
	e := newEnv(t, func(r *Repos) {
		fake = &fakeItems{Repo: r.Items}
		r.Items = fake
	})
	worker := e.token(t, model.RoleWorker)
	admin := e.token(t, model.RoleAdmin)

	created := e.do(t, 23, worker, protocol.InventoryItem{SKU: "S", Name: "n"})
	require.Equal(t, 201, created.Code)
	id := created.Data.(protocol.InventoryItem).ID

	fake.deleteErr = errs.ErrNotFound
	require.Equal(t, protocol.Error(500, "Could not delete inventory item."), e.do(t, 25, admin, id))

	fake.deleteErr = errors.New("store down")
	require.Equal(t, protocol.Error(500, MsgInternal), e.do(t, 25, admin, id))

	fake.findAll = errors.New("store down")
	require.Equal(t, protocol.Error(500, MsgInternal), e.do(t, 21, "", nil))
}

func TestDispatch_StatusTransforms(t *testing.T) {
	e := newEnv(t, nil)
	worker := e.token(t, model.RoleWorker)
	admin := e.token(t, model.RoleAdmin)

	item := e.do(t, 23, worker, protocol.InventoryItem{SKU: "S", Name: "n", Available: true}).Data.(protocol.InventoryItem)
	toggled := e.do(t, 24, worker, item.ID)
	require.Equal(t, 200, toggled.Code)
	require.False(t, toggled.Data.(protocol.InventoryItem).Available)
	require.False(t, e.do(t, 22, "", item.ID).Data.(protocol.InventoryItem).Available)

	wi := e.do(t, 43, worker, protocol.WorkItem{Title: "oil the press"}).Data.(protocol.WorkItem)
	require.Equal(t, "OPEN", wi.Status)
	require.Equal(t, protocol.Error(404, "No work items found."), e.do(t, 41, "", "DONE"))
	done := e.do(t, 44, worker, wi.ID).Data.(protocol.WorkItem)
	require.Equal(t, "DONE", done.Status)
	require.NotNil(t, done.ClosedAt)
	require.Len(t, e.do(t, 41, "", "done").Data.(protocol.WorkItemList).Items, 1)
	require.Equal(t, protocol.Error(400, "Invalid body for request code 41."), e.do(t, 41, "", "HALF"))

	dev := e.do(t, 33, admin, protocol.Device{Serial: "S", Model: "M", AssignedTo: uuid.Must(uuid.NewV4()).String()}).Data.(protocol.Device)
	dec := e.do(t, 34, admin, dev.ID).Data.(protocol.Device)
	require.False(t, dec.Active)
	require.Empty(t, dec.AssignedTo)

	require.Equal(t, protocol.Error(404, "Order not found."), e.do(t, 54, worker, uuid.Must(uuid.NewV4()).String()))
}

func TestDispatch_OrdersDefaultCustomer(t *testing.T) {
	e := newEnv(t, nil)
	sub := uuid.Must(uuid.NewV4())
	client, err := e.tokens.Issue(sub, model.RoleClient)
	require.NoError(t, err)
	worker := e.token(t, model.RoleWorker)
	line := []protocol.OrderLine{{ItemID: uuid.Must(uuid.NewV4()).String(), Quantity: 1}}

	other := uuid.Must(uuid.NewV4()).String()
	o := e.do(t, 53, client, protocol.Order{CustomerID: other, Lines: line, Finalized: true}).Data.(protocol.Order)
	require.Equal(t, sub.String(), o.CustomerID)
	require.False(t, o.Finalized)

	byWorker := e.do(t, 53, worker, protocol.Order{CustomerID: other, Lines: line}).Data.(protocol.Order)
	require.Equal(t, other, byWorker.CustomerID)

	fin := e.do(t, 54, worker, o.ID)
	require.True(t, fin.Data.(protocol.Order).Finalized)
	list := e.do(t, 51, "", "true").Data.(protocol.OrderList)
	require.Len(t, list.Items, 1)
}

func TestDispatch_CreateAccountReturnsSession(t *testing.T) {
	e := newEnv(t, nil)
	admin := e.token(t, model.RoleAdmin)

	resp := e.do(t, 13, admin, protocol.Account{Email: "Worker@Plant.io", Name: "W", Role: "WORKER", Password: "password1"})
	require.Equal(t, 201, resp.Code, resp.Message)
	sess := resp.Data.(protocol.Session)
	require.Equal(t, "worker@plant.io", sess.Account.Email)
	require.True(t, sess.Account.Active)
	require.Empty(t, sess.Account.Password)

	res := e.tokens.Validate(sess.Token, model.RoleWorker)
	require.Equal(t, auth.Authorized, res.Outcome)
	require.Equal(t, sess.Account.ID, res.Subject.String())

	require.Equal(t, protocol.Error(400, "Account already exists."),
		e.do(t, 13, admin, protocol.Account{Email: "worker@plant.io", Name: "X", Password: "password2"}))
	require.Equal(t, protocol.Error(400, MsgIncorrect),
		e.do(t, 13, admin, protocol.Account{Email: "nopass@plant.io", Name: "X"}))

	deact := e.do(t, 14, admin, sess.Account.ID)
	require.False(t, deact.Data.(protocol.Account).Active)
	require.Len(t, e.do(t, 11, "", "false").Data.(protocol.AccountList).Items, 1)
}

func TestParseCode(t *testing.T) {
	for in, want := range map[string]int{"21": 21, " 65 ": 65} {
		got, err := ParseCode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	for _, in := range []string{"", "9", "100", "x1"} {
		_, err := ParseCode(in)
		require.Error(t, err, fmt.Sprintf("input %q", in))
	}
}
