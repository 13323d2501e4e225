// Package convert maps domain models to wire DTOs and back.
package convert

import (
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
)

// --- helpers ---

func idString(id u.UUID) string {
	if id == u.Nil {
		return ""
	}
	return id.String()
}

// ParseID parses an optional identifier; "" yields uuid.Nil.
func ParseID(s string) (u.UUID, error) {
	if s == "" {
		return u.Nil, nil
	}
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func parseIDs(dst []*u.UUID, src ...string) error {
	for i, s := range src {
		id, err := ParseID(s)
		if err != nil {
			return err
		}
		*dst[i] = id
	}
	return nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func mapSlice[A, B any](in []A, f func(A) B) []B {
	out := make([]B, 0, len(in))
	for _, a := range in {
		out = append(out, f(a))
	}
	return out
}

// --- Account ---

// ToWireAccount converts an account; credentials are never exposed.
func ToWireAccount(a model.Account) protocol.Account {
	return protocol.Account{
		ID:        idString(a.ID),
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role.String(),
		Active:    a.Active,
		CreatedAt: utc(a.CreatedAt),
	}
}

// FromWireAccount converts an account DTO. An empty role means CLIENT.
// The password, if any, is left to the caller.
func FromWireAccount(in protocol.Account) (model.Account, error) {
	id, err := ParseID(in.ID)
	if err != nil {
		return model.Account{}, err
	}
	role := model.RoleClient
	if in.Role != "" {
		if role, err = model.ParseRole(in.Role); err != nil {
			return model.Account{}, err
		}
	}
	return model.Account{
		ID:        id,
		Email:     in.Email,
		Name:      in.Name,
		Role:      role,
		Active:    in.Active,
		CreatedAt: in.CreatedAt,
	}, nil
}

// AccountList wraps converted accounts.
func AccountList(in []model.Account) protocol.Payload {
	return protocol.AccountList{Items: mapSlice(in, ToWireAccount)}
}

// --- InventoryItem ---

// ToWireInventoryItem converts an inventory item.
func ToWireInventoryItem(i model.InventoryItem) protocol.InventoryItem {
	return protocol.InventoryItem{
		ID:        idString(i.ID),
		SKU:       i.SKU,
		Name:      i.Name,
		Quantity:  i.Quantity,
		Location:  i.Location,
		Available: i.Available,
		UpdatedAt: utc(i.UpdatedAt),
	}
}

// FromWireInventoryItem converts an inventory item DTO.
func FromWireInventoryItem(in protocol.InventoryItem) (model.InventoryItem, error) {
	id, err := ParseID(in.ID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	return model.InventoryItem{
		ID:        id,
		SKU:       in.SKU,
		Name:      in.Name,
		Quantity:  in.Quantity,
		Location:  in.Location,
		Available: in.Available,
		UpdatedAt: in.UpdatedAt,
	}, nil
}

// InventoryItemList wraps converted items.
func InventoryItemList(in []model.InventoryItem) protocol.Payload {
	return protocol.InventoryItemList{Items: mapSlice(in, ToWireInventoryItem)}
}

// --- Device ---

func ToWireDevice(d model.Device) protocol.Device {
	return protocol.Device{
		ID:           idString(d.ID),
		Serial:       d.Serial,
		Model:        d.Model,
		AssignedTo:   idString(d.AssignedTo),
		Active:       d.Active,
		RegisteredAt: utc(d.RegisteredAt),
	}
}

func FromWireDevice(in protocol.Device) (model.Device, error) {
	var d model.Device
	if err := parseIDs([]*u.UUID{&d.ID, &d.AssignedTo}, in.ID, in.AssignedTo); err != nil {
		return model.Device{}, err
	}
	d.Serial = in.Serial
	d.Model = in.Model
	d.Active = in.Active
	d.RegisteredAt = in.RegisteredAt
	return d, nil
}

func DeviceList(in []model.Device) protocol.Payload {
	return protocol.DeviceList{Items: mapSlice(in, ToWireDevice)}
}

// --- WorkItem ---

func ToWireWorkItem(w model.WorkItem) protocol.WorkItem {
	out := protocol.WorkItem{
		ID:          idString(w.ID),
		Title:       w.Title,
		Description: w.Description,
		AssigneeID:  idString(w.AssigneeID),
		DeviceID:    idString(w.DeviceID),
		Status:      string(w.Status),
		CreatedAt:   utc(w.CreatedAt),
	}
	if w.ClosedAt != nil {
		t := w.ClosedAt.UTC()
		out.ClosedAt = &t
	}
	return out
}

// FromWireWorkItem converts a work item DTO. An empty status means OPEN.
func FromWireWorkItem(in protocol.WorkItem) (model.WorkItem, error) {
	var w model.WorkItem
	if err := parseIDs([]*u.UUID{&w.ID, &w.AssigneeID, &w.DeviceID}, in.ID, in.AssigneeID, in.DeviceID); err != nil {
		return model.WorkItem{}, err
	}
	w.Title = in.Title
	w.Description = in.Description
	w.Status = model.WorkStatus(in.Status)
	if w.Status == "" {
		w.Status = model.WorkOpen
	}
	w.CreatedAt = in.CreatedAt
	w.ClosedAt = in.ClosedAt
	return w, nil
}

func WorkItemList(in []model.WorkItem) protocol.Payload {
	return protocol.WorkItemList{Items: mapSlice(in, ToWireWorkItem)}
}

// --- Order ---

func ToWireOrder(o model.Order) protocol.Order {
	lines := make([]protocol.OrderLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, protocol.OrderLine{ItemID: idString(l.ItemID), Quantity: l.Quantity})
	}
	return protocol.Order{
		ID:         idString(o.ID),
		CustomerID: idString(o.CustomerID),
		Lines:      lines,
		Finalized:  o.Finalized,
		PlacedAt:   utc(o.PlacedAt),
	}
}

func FromWireOrder(in protocol.Order) (model.Order, error) {
	var o model.Order
	if err := parseIDs([]*u.UUID{&o.ID, &o.CustomerID}, in.ID, in.CustomerID); err != nil {
		return model.Order{}, err
	}
	o.Lines = make([]model.OrderLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		itemID, err := ParseID(l.ItemID)
		if err != nil {
			return model.Order{}, fmt.Errorf("line[%d]: %w", i, err)
		}
		o.Lines = append(o.Lines, model.OrderLine{ItemID: itemID, Quantity: l.Quantity})
	}
	o.Finalized = in.Finalized
	o.PlacedAt = in.PlacedAt
	return o, nil
}

func OrderList(in []model.Order) protocol.Payload {
	return protocol.OrderList{Items: mapSlice(in, ToWireOrder)}
}

// --- Shift ---

func ToWireShift(s model.Shift) protocol.Shift {
	return protocol.Shift{
		ID:       idString(s.ID),
		WorkerID: idString(s.WorkerID),
		StartsAt: utc(s.StartsAt),
		EndsAt:   utc(s.EndsAt),
		Closed:   s.Closed,
	}
}

func FromWireShift(in protocol.Shift) (model.Shift, error) {
	var s model.Shift
	if err := parseIDs([]*u.UUID{&s.ID, &s.WorkerID}, in.ID, in.WorkerID); err != nil {
		return model.Shift{}, err
	}
	s.StartsAt = in.StartsAt
	s.EndsAt = in.EndsAt
	s.Closed = in.Closed
	return s, nil
}

func ShiftList(in []model.Shift) protocol.Payload {
	return protocol.ShiftList{Items: mapSlice(in, ToWireShift)}
}
