// Package dispatch routes numeric action codes to handlers over the cached
// repositories. The tens digit of a code selects the entity domain, the units
// digit the operation.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/shopfloor/internal/auth"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
)

// Response messages that do not depend on the entity domain.
const (
	MsgNoCode        = "no request code attached"
	MsgIncorrect     = "Incorrect fields."
	MsgInternal      = "Internal error."
	msgInvalidBodyFm = "Invalid body for request code %d."
)

// Operation units.
const (
	opList   = 1
	opGet    = 2
	opCreate = 3
	opStatus = 4
	opDelete = 5
)

// Repo is the cached repository contract the handlers call.
type Repo[E any] interface {
	FindAll(ctx context.Context) ([]E, error)
	FindByKey(ctx context.Context, key uuid.UUID) (E, error)
	Save(ctx context.Context, e E) (E, error)
	Delete(ctx context.Context, ref int64) (E, error)
	UpdateStatus(ctx context.Context, ref int64, transform func(E) E) (E, error)
}

// Repos groups one repository per entity domain.
type Repos struct {
	Accounts  Repo[model.Account]
	Items     Repo[model.InventoryItem]
	Devices   Repo[model.Device]
	WorkItems Repo[model.WorkItem]
	Orders    Repo[model.Order]
	Shifts    Repo[model.Shift]
}

// Tokens issues and validates bearer tokens.
type Tokens interface {
	Issue(subject uuid.UUID, role model.Role) (string, error)
	Validate(token string, required model.Role) auth.Result
}

// AccountCreator hashes credentials and saves a new account.
type AccountCreator interface {
	CreateAccount(ctx context.Context, a model.Account, password string) (model.Account, error)
}

// Validator checks DTO fields.
type Validator interface {
	Valid(dto any) bool
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Repos     Repos
	Tokens    Tokens
	Accounts  AccountCreator
	Validator Validator
	Logger    *zap.Logger
}

type call struct {
	code int
	body string
	auth auth.Result
}

type handler func(ctx context.Context, c call) protocol.Response

type route struct {
	// role is the minimum role; zero means public.
	role   model.Role
	handle handler
}

// Dispatcher maps action codes to handlers.
type Dispatcher struct {
	routes map[int]route
	tokens Tokens
	log    *zap.Logger
	now    func() time.Time
}

// New builds the fixed action table.
func New(d Deps) *Dispatcher {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	disp := &Dispatcher{
		routes: make(map[int]route),
		tokens: d.Tokens,
		log:    d.Logger,
		now:    time.Now,
	}
	disp.registerAll(d)
	return disp
}

// Dispatch runs the handler for code. It never returns a nil-typed response.
func (d *Dispatcher) Dispatch(ctx context.Context, code int, token, body string) protocol.Response {
	r, ok := d.routes[code]
	if !ok {
		return protocol.Error(400, MsgNoCode)
	}
	var res auth.Result
	if r.role != 0 {
		res = d.tokens.Validate(token, r.role)
		if res.Outcome != auth.Authorized {
			return protocol.Error(res.Code(), res.Message)
		}
	}
	return r.handle(ctx, call{code: code, body: strings.TrimSpace(body), auth: res})
}

// Codes returns the action table in ascending order.
func (d *Dispatcher) Codes() []int {
	out := make([]int, 0, len(d.routes))
	for c := range d.routes {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// RequiredRole returns the minimum role of code, zero for public codes.
func (d *Dispatcher) RequiredRole(code int) (model.Role, bool) {
	r, ok := d.routes[code]
	return r.role, ok
}

func invalidBody(code int) protocol.Response {
	return protocol.Error(400, fmt.Sprintf(msgInvalidBodyFm, code))
}
