package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
	"github.com/and161185/shopfloor/internal/repository"
)

// domain binds the five generic operations to one entity kind.
type domain[E repository.Entity[E], P protocol.Payload] struct {
	base        int
	one, many   string
	repo        Repo[E]
	valid       Validator
	log         *zap.Logger
	toWire      func(E) P
	wrapList    func([]E) protocol.Payload
	fromWire    func(P) (E, error)
	parseFilter func(string) (func(E) bool, error)

	// prepare fills server-owned fields of a new entity.
	prepare func(c call, e E, p P) (E, error)

	// save overrides repo.Save on create.
	save func(ctx context.Context, e E, p P) (E, error)

	// created builds the create response; defaults to toWire.
	created func(e E) (protocol.Payload, error)

	// transform is the unit-4 status change; nil when the domain offers none.
	transform func(E) E

	createRole, statusRole, deleteRole model.Role
}

func (dm *domain[E, P]) register(routes map[int]route) {
	routes[dm.base+opList] = route{handle: dm.list}
	routes[dm.base+opGet] = route{handle: dm.get}
	routes[dm.base+opCreate] = route{role: dm.createRole, handle: dm.create}
	if dm.transform != nil {
		routes[dm.base+opStatus] = route{role: dm.statusRole, handle: dm.status}
	}
	routes[dm.base+opDelete] = route{role: dm.deleteRole, handle: dm.delete}
}

func (dm *domain[E, P]) notFound() protocol.Response {
	return protocol.Error(404, dm.one+" not found.")
}

func (dm *domain[E, P]) internal(c call, err error) protocol.Response {
	dm.log.Error("repository failure", zap.Int("code", c.code), zap.Error(err))
	return protocol.Error(500, MsgInternal)
}

func (dm *domain[E, P]) list(ctx context.Context, c call) protocol.Response {
	keep := func(E) bool { return true }
	if c.body != "" {
		f, err := dm.parseFilter(c.body)
		if err != nil {
			return invalidBody(c.code)
		}
		keep = f
	}
	all, err := dm.repo.FindAll(ctx)
	if err != nil {
		return dm.internal(c, err)
	}
	out := make([]E, 0, len(all))
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return protocol.Error(404, fmt.Sprintf("No %s found.", dm.many))
	}
	return protocol.Success(200, dm.wrapList(out))
}

// lookup resolves the external id in the body. ok is false when resp must be returned.
func (dm *domain[E, P]) lookup(ctx context.Context, c call) (e E, resp protocol.Response, ok bool) {
	id, err := uuid.FromString(c.body)
	if err != nil {
		return e, invalidBody(c.code), false
	}
	e, err = dm.repo.FindByKey(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return e, dm.notFound(), false
	case err != nil:
		return e, dm.internal(c, err), false
	}
	return e, protocol.Response{}, true
}

func (dm *domain[E, P]) get(ctx context.Context, c call) protocol.Response {
	e, resp, ok := dm.lookup(ctx, c)
	if !ok {
		return resp
	}
	return protocol.Success(200, dm.toWire(e))
}

func (dm *domain[E, P]) create(ctx context.Context, c call) protocol.Response {
	var p P
	if c.body == "" || json.Unmarshal([]byte(c.body), &p) != nil {
		return invalidBody(c.code)
	}
	if !dm.valid.Valid(p) {
		return protocol.Error(400, MsgIncorrect)
	}
	e, err := dm.fromWire(p)
	if err != nil {
		return protocol.Error(400, MsgIncorrect)
	}
	if key := e.Key(); key != uuid.Nil {
		_, err := dm.repo.FindByKey(ctx, key)
		switch {
		case err == nil:
			return protocol.Error(400, dm.one+" already exists.")
		case !errors.Is(err, errs.ErrNotFound):
			return dm.internal(c, err)
		}
	}
	if e, err = dm.prepare(c, e, p); err != nil {
		return dm.internal(c, err)
	}

	save := func(ctx context.Context, e E, _ P) (E, error) { return dm.repo.Save(ctx, e) }
	if dm.save != nil {
		save = dm.save
	}
	saved, err := save(ctx, e, p)
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		return protocol.Error(400, dm.one+" already exists.")
	case errors.Is(err, errs.ErrInvalidFields):
		return protocol.Error(400, MsgIncorrect)
	case err != nil:
		return dm.internal(c, err)
	}

	if dm.created == nil {
		return protocol.Success(201, dm.toWire(saved))
	}
	payload, err := dm.created(saved)
	if err != nil {
		return dm.internal(c, err)
	}
	return protocol.Success(201, payload)
}

func (dm *domain[E, P]) status(ctx context.Context, c call) protocol.Response {
	e, resp, ok := dm.lookup(ctx, c)
	if !ok {
		return resp
	}
	upd, err := dm.repo.UpdateStatus(ctx, e.Ref(), dm.transform)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return protocol.Error(500, "Could not update "+strings.ToLower(dm.one)+".")
	case err != nil:
		return dm.internal(c, err)
	}
	return protocol.Success(200, dm.toWire(upd))
}

func (dm *domain[E, P]) delete(ctx context.Context, c call) protocol.Response {
	e, resp, ok := dm.lookup(ctx, c)
	if !ok {
		return resp
	}
	deleted, err := dm.repo.Delete(ctx, e.Ref())
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return protocol.Error(500, "Could not delete "+strings.ToLower(dm.one)+".")
	case err != nil:
		return dm.internal(c, err)
	}
	return protocol.Success(200, dm.toWire(deleted))
}
