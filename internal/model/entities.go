package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Every entity carries two keys: ID is the stable external identifier used by
// clients and caches, StoreID is assigned by the persistent store and never
// leaves the server.

// Account is a user of the system. Sensitive material is never stored in plaintext.
type Account struct {
	StoreID   int64     `json:"-"`
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	PwdHash   []byte    `json:"pwd_hash"`  // Argon2id(password, SaltAuth)
	SaltAuth  []byte    `json:"salt_auth"` // per-account salt
	CreatedAt time.Time `json:"created_at"`
}

// InventoryItem is a stock-keeping unit held at a location.
type InventoryItem struct {
	StoreID   int64     `json:"-"`
	ID        uuid.UUID `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is a piece of shop-floor equipment, optionally assigned to an account.
type Device struct {
	StoreID      int64     `json:"-"`
	ID           uuid.UUID `json:"id"`
	Serial       string    `json:"serial"`
	Model        string    `json:"model"`
	AssignedTo   uuid.UUID `json:"assigned_to"` // uuid.Nil when unassigned
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// WorkStatus is the lifecycle state of a work item.
type WorkStatus string

// Work item states.
const (
	WorkOpen WorkStatus = "OPEN"
	WorkDone WorkStatus = "DONE"
)

// WorkItem is a task assigned to a worker, optionally bound to a device.
type WorkItem struct {
	StoreID     int64      `json:"-"`
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssigneeID  uuid.UUID  `json:"assignee_id"`
	DeviceID    uuid.UUID  `json:"device_id"`
	Status      WorkStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// OrderLine is a quantity of one inventory item within an order.
type OrderLine struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// Order is a customer order; once finalized it is no longer editable.
type Order struct {
	StoreID    int64       `json:"-"`
	ID         uuid.UUID   `json:"id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
	Finalized  bool        `json:"finalized"`
	PlacedAt   time.Time   `json:"placed_at"`
}

// Shift is a scheduled working period of a worker.
type Shift struct {
	StoreID  int64     `json:"-"`
	ID       uuid.UUID `json:"id"`
	WorkerID uuid.UUID `json:"worker_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Closed   bool      `json:"closed"`
}

// Key returns the external identifier.
func (a Account) Key() uuid.UUID { return a.ID }

// Ref returns the store-internal key.
func (a Account) Ref() int64 { return a.StoreID }

// WithRef returns a copy carrying the given store-internal key.
func (a Account) WithRef(id int64) Account {
	a.StoreID = id
	return a
}

func (i InventoryItem) Key() uuid.UUID { return i.ID }

func (i InventoryItem) Ref() int64 { return i.StoreID }

func (i InventoryItem) WithRef(id int64) InventoryItem {
	i.StoreID = id
	return i
}

func (d Device) Key() uuid.UUID { return d.ID }

func (d Device) Ref() int64 { return d.StoreID }

func (d Device) WithRef(id int64) Device {
	d.StoreID = id
	return d
}

func (w WorkItem) Key() uuid.UUID { return w.ID }

func (w WorkItem) Ref() int64 { return w.StoreID }

func (w WorkItem) WithRef(id int64) WorkItem {
	w.StoreID = id
	return w
}

func (o Order) Key() uuid.UUID { return o.ID }

func (o Order) Ref() int64 { return o.StoreID }

func (o Order) WithRef(id int64) Order {
	o.StoreID = id
	return o
}

func (s Shift) Key() uuid.UUID { return s.ID }

func (s Shift) Ref() int64 { return s.StoreID }

func (s Shift) WithRef(id int64) Shift {
	s.StoreID = id
	return s
}
