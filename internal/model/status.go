package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Status transforms return modified copies; the receiver is left untouched.

// Deactivate marks the account inactive.
func (a Account) Deactivate() Account {
	a.Active = false
	return a
}

// ToggleAvailability flips the availability flag of the item.
func (i InventoryItem) ToggleAvailability() InventoryItem {
	i.Available = !i.Available
	i.UpdatedAt = time.Now().UTC()
	return i
}

// Decommission takes the device out of service and clears its assignment.
func (d Device) Decommission() Device {
	d.Active = false
	d.AssignedTo = uuid.Nil
	return d
}

// Complete marks the work item done at the given time. Completing a done item keeps its close time.
func (w WorkItem) Complete(at time.Time) WorkItem {
	if w.Status == WorkDone && w.ClosedAt != nil {
		return w
	}
	w.Status = WorkDone
	t := at.UTC()
	w.ClosedAt = &t
	return w
}

// Finalize freezes the order.
func (o Order) Finalize() Order {
	o.Finalized = true
	return o
}
