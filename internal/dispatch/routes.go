package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/shopfloor/internal/convert"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
)

var errBadFilter = errors.New("bad filter")

// boolFilter parses "true"/"false" and selects entities whose flag matches.
func boolFilter[E any](flag func(E) bool) func(string) (func(E) bool, error) {
	return func(s string) (func(E) bool, error) {
		var want bool
		switch strings.ToLower(s) {
		case "true":
			want = true
		case "false":
		default:
			return nil, errBadFilter
		}
		return func(e E) bool { return flag(e) == want }, nil
	}
}

func workStatusFilter(s string) (func(model.WorkItem) bool, error) {
	want := model.WorkStatus(strings.ToUpper(s))
	if want != model.WorkOpen && want != model.WorkDone {
		return nil, errBadFilter
	}
	return func(w model.WorkItem) bool { return w.Status == want }, nil
}

func newID(id uuid.UUID) (uuid.UUID, error) {
	if id != uuid.Nil {
		return id, nil
	}
	return uuid.NewV4()
}

func (d *Dispatcher) registerAll(deps Deps) {
	v, log := deps.Validator, d.log

	accounts := &domain[model.Account, protocol.Account]{
		base:        10,
		one:         "Account",
		many:        "accounts",
		repo:        deps.Repos.Accounts,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireAccount,
		wrapList:    convert.AccountList,
		fromWire:    convert.FromWireAccount,
		parseFilter: boolFilter(func(a model.Account) bool { return a.Active }),
		prepare: func(_ call, a model.Account, _ protocol.Account) (model.Account, error) {
			return a, nil
		},
		save: func(ctx context.Context, a model.Account, p protocol.Account) (model.Account, error) {
			return deps.Accounts.CreateAccount(ctx, a, p.Password)
		},
		created: func(a model.Account) (protocol.Payload, error) {
			tok, err := deps.Tokens.Issue(a.ID, a.Role)
			if err != nil {
				return nil, err
			}
			return protocol.Session{Token: tok, Account: convert.ToWireAccount(a)}, nil
		},
		transform:  model.Account.Deactivate,
		createRole: model.RoleAdmin,
		statusRole: model.RoleAdmin,
		deleteRole: model.RoleAdmin,
	}

	items := &domain[model.InventoryItem, protocol.InventoryItem]{
		base:        20,
		one:         "Inventory item",
		many:        "inventory items",
		repo:        deps.Repos.Items,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireInventoryItem,
		wrapList:    convert.InventoryItemList,
		fromWire:    convert.FromWireInventoryItem,
		parseFilter: boolFilter(func(i model.InventoryItem) bool { return i.Available }),
		prepare: func(_ call, i model.InventoryItem, _ protocol.InventoryItem) (model.InventoryItem, error) {
			var err error
			i.ID, err = newID(i.ID)
			i.UpdatedAt = d.now().UTC()
			return i, err
		},
		transform:  model.InventoryItem.ToggleAvailability,
		createRole: model.RoleWorker,
		statusRole: model.RoleWorker,
		deleteRole: model.RoleAdmin,
	}

	devices := &domain[model.Device, protocol.Device]{
		base:        30,
		one:         "Device",
		many:        "devices",
		repo:        deps.Repos.Devices,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireDevice,
		wrapList:    convert.DeviceList,
		fromWire:    convert.FromWireDevice,
		parseFilter: boolFilter(func(dv model.Device) bool { return dv.Active }),
		prepare: func(_ call, dv model.Device, _ protocol.Device) (model.Device, error) {
			var err error
			dv.ID, err = newID(dv.ID)
			dv.Active = true
			if dv.RegisteredAt.IsZero() {
				dv.RegisteredAt = d.now().UTC()
			}
			return dv, err
		},
		transform:  model.Device.Decommission,
		createRole: model.RoleAdmin,
		statusRole: model.RoleAdmin,
		deleteRole: model.RoleAdmin,
	}

	workItems := &domain[model.WorkItem, protocol.WorkItem]{
		base:        40,
		one:         "Work item",
		many:        "work items",
		repo:        deps.Repos.WorkItems,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireWorkItem,
		wrapList:    convert.WorkItemList,
		fromWire:    convert.FromWireWorkItem,
		parseFilter: workStatusFilter,
		prepare: func(_ call, w model.WorkItem, _ protocol.WorkItem) (model.WorkItem, error) {
			var err error
			w.ID, err = newID(w.ID)
			now := d.now().UTC()
			w.CreatedAt = now
			if w.Status == model.WorkDone && w.ClosedAt == nil {
				w.ClosedAt = &now
			}
			return w, err
		},
		transform: func(w model.WorkItem) model.WorkItem {
			return w.Complete(d.now().UTC())
		},
		createRole: model.RoleWorker,
		statusRole: model.RoleWorker,
		deleteRole: model.RoleAdmin,
	}

	orders := &domain[model.Order, protocol.Order]{
		base:        50,
		one:         "Order",
		many:        "orders",
		repo:        deps.Repos.Orders,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireOrder,
		wrapList:    convert.OrderList,
		fromWire:    convert.FromWireOrder,
		parseFilter: boolFilter(func(o model.Order) bool { return o.Finalized }),
		prepare: func(c call, o model.Order, _ protocol.Order) (model.Order, error) {
			var err error
			o.ID, err = newID(o.ID)
			// Clients always order for themselves.
			if o.CustomerID == uuid.Nil || c.auth.Role == model.RoleClient {
				o.CustomerID = c.auth.Subject
			}
			o.Finalized = false
			o.PlacedAt = d.now().UTC()
			return o, err
		},
		transform:  model.Order.Finalize,
		createRole: model.RoleClient,
		statusRole: model.RoleWorker,
		deleteRole: model.RoleAdmin,
	}

	shifts := &domain[model.Shift, protocol.Shift]{
		base:        60,
		one:         "Shift",
		many:        "shifts",
		repo:        deps.Repos.Shifts,
		valid:       v,
		log:         log,
		toWire:      convert.ToWireShift,
		wrapList:    convert.ShiftList,
		fromWire:    convert.FromWireShift,
		parseFilter: boolFilter(func(s model.Shift) bool { return s.Closed }),
		prepare: func(_ call, s model.Shift, _ protocol.Shift) (model.Shift, error) {
			var err error
			s.ID, err = newID(s.ID)
			return s, err
		},
		createRole: model.RoleAdmin,
		deleteRole: model.RoleAdmin,
	}

	accounts.register(d.routes)
	items.register(d.routes)
	devices.register(d.routes)
	workItems.register(d.routes)
	orders.register(d.routes)
	shifts.register(d.routes)
}

// ParseCode validates a raw code, as used by clients that take codes from user input.
func ParseCode(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 10 || n > 99 {
		return 0, errors.New("action code must be two digits")
	}
	return n, nil
}
