// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// Entity is a document addressable by an external key and a store-internal reference.
// WithRef returns a copy of the entity carrying the given store reference.
type Entity[E any] interface {
	Key() uuid.UUID
	Ref() int64
	WithRef(ref int64) E
}

// Store is the persistent repository for one entity kind.
// Lookups that find nothing return errs.ErrNotFound.
type Store[E Entity[E]] interface {
	// FindAll returns every stored entity of the kind.
	FindAll(ctx context.Context) ([]E, error)
	// FindByKey loads an entity by its external key.
	FindByKey(ctx context.Context, key uuid.UUID) (E, error)
	// FindByRef loads an entity by its store-internal reference.
	FindByRef(ctx context.Context, ref int64) (E, error)
	// Save upserts by external key and returns the entity with its reference set.
	Save(ctx context.Context, e E) (E, error)
	// UpdateByRef overwrites the entity stored under ref. It never inserts:
	// a missing ref yields errs.ErrNotFound.
	UpdateByRef(ctx context.Context, ref int64, e E) (E, error)
	// DeleteByRef removes the entity with the given reference.
	DeleteByRef(ctx context.Context, ref int64) error
}

// Kind names used as document collections by the store backends.
const (
	KindAccounts  = "accounts"
	KindItems     = "inventory_items"
	KindDevices   = "devices"
	KindWorkItems = "work_items"
	KindOrders    = "orders"
	KindShifts    = "shifts"
)
