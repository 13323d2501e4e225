package protocol

import "time"

// PayloadType discriminates the data carried by a success response.
type PayloadType string

// Payload types. The set is closed; DecodeResponse rejects anything else.
const (
	TypeAccount           PayloadType = "Account"
	TypeAccountList       PayloadType = "AccountList"
	TypeInventoryItem     PayloadType = "InventoryItem"
	TypeInventoryItemList PayloadType = "InventoryItemList"
	TypeDevice            PayloadType = "Device"
	TypeDeviceList        PayloadType = "DeviceList"
	TypeWorkItem          PayloadType = "WorkItem"
	TypeWorkItemList      PayloadType = "WorkItemList"
	TypeOrder             PayloadType = "Order"
	TypeOrderList         PayloadType = "OrderList"
	TypeShift             PayloadType = "Shift"
	TypeShiftList         PayloadType = "ShiftList"
	TypeSession           PayloadType = "Session"
)

// Payload is the data of a success response.
type Payload interface {
	PayloadType() PayloadType
}

// Account is the wire form of an account. Password is accepted on create
// and never returned.
type Account struct {
	ID        string    `json:"id,omitempty" validate:"omitempty,uuid"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Name      string    `json:"name" validate:"required,max=128"`
	Role      string    `json:"role,omitempty" validate:"omitempty,oneof=CLIENT WORKER ADMIN"`
	Active    bool      `json:"active"`
	Password  string    `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// InventoryItem is the wire form of a stock item.
type InventoryItem struct {
	ID        string    `json:"id,omitempty" validate:"omitempty,uuid"`
	SKU       string    `json:"sku" validate:"required,max=64"`
	Name      string    `json:"name" validate:"required,max=128"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
	Location  string    `json:"location" validate:"max=64"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Device is the wire form of a device.
type Device struct {
	ID           string    `json:"id,omitempty" validate:"omitempty,uuid"`
	Serial       string    `json:"serial" validate:"required,max=64"`
	Model        string    `json:"model" validate:"required,max=128"`
	AssignedTo   string    `json:"assignedTo,omitempty" validate:"omitempty,uuid"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registeredAt,omitzero"`
}

// WorkItem is the wire form of a work item.
type WorkItem struct {
	ID          string     `json:"id,omitempty" validate:"omitempty,uuid"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=4000"`
	AssigneeID  string     `json:"assigneeId,omitempty" validate:"omitempty,uuid"`
	DeviceID    string     `json:"deviceId,omitempty" validate:"omitempty,uuid"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=OPEN DONE"`
	CreatedAt   time.Time  `json:"createdAt,omitzero"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// OrderLine is one item and quantity within an order.
type OrderLine struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// Order is the wire form of an order.
type Order struct {
	ID         string      `json:"id,omitempty" validate:"omitempty,uuid"`
	CustomerID string      `json:"customerId,omitempty" validate:"omitempty,uuid"`
	Lines      []OrderLine `json:"lines" validate:"required,min=1,dive"`
	Finalized  bool        `json:"finalized"`
	PlacedAt   time.Time   `json:"placedAt,omitzero"`
}

// Shift is the wire form of a worker shift.
type Shift struct {
	ID       string    `json:"id,omitempty" validate:"omitempty,uuid"`
	WorkerID string    `json:"workerId" validate:"required,uuid"`
	StartsAt time.Time `json:"startsAt" validate:"required"`
	EndsAt   time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	Closed   bool      `json:"closed"`
}

// Session is returned by login, register and account creation.
type Session struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

// List wrappers.
type (
	AccountList       struct{ Items []Account `json:"items"` }
	InventoryItemList struct{ Items []InventoryItem `json:"items"` }
	DeviceList        struct{ Items []Device `json:"items"` }
	WorkItemList      struct{ Items []WorkItem `json:"items"` }
	OrderList         struct{ Items []Order `json:"items"` }
	ShiftList         struct{ Items []Shift `json:"items"` }
)

func (Account) PayloadType() PayloadType           { return TypeAccount }
func (AccountList) PayloadType() PayloadType       { return TypeAccountList }
func (InventoryItem) PayloadType() PayloadType     { return TypeInventoryItem }
func (InventoryItemList) PayloadType() PayloadType { return TypeInventoryItemList }
func (Device) PayloadType() PayloadType            { return TypeDevice }
func (DeviceList) PayloadType() PayloadType        { return TypeDeviceList }
func (WorkItem) PayloadType() PayloadType          { return TypeWorkItem }
func (WorkItemList) PayloadType() PayloadType      { return TypeWorkItemList }
func (Order) PayloadType() PayloadType             { return TypeOrder }
func (OrderList) PayloadType() PayloadType         { return TypeOrderList }
func (Shift) PayloadType() PayloadType             { return TypeShift }
func (ShiftList) PayloadType() PayloadType         { return TypeShiftList }
func (Session) PayloadType() PayloadType           { return TypeSession }
