// Package repository provides generic CRUD over the collections of the
// portal document. All reads and writes go through one mutex, so
// load-mutate-save cycles never interleave and no update is lost.
package repository

import (
	"context"

	"portalapi/internal/model"
)

// Repository is the data access contract used by the service layer.
type Repository interface {
	// List returns every record of c in insertion order.
	List(ctx context.Context, c model.Collection) ([]model.Record, error)

	// ListWhere returns the records of c matching pred, in insertion order.
	ListWhere(ctx context.Context, c model.Collection, pred func(model.Record) bool) ([]model.Record, error)

	// Get returns the record of c with the given id, or model.ErrNotFound.
	Get(ctx context.Context, c model.Collection, id int64) (model.Record, error)

	// Create validates fields against the collection schema, assigns a new
	// id, appends the record and persists the document.
	Create(ctx context.Context, c model.Collection, fields model.Record) (model.Record, error)

	// Update merges the truthy updatable fields into the record and persists.
	Update(ctx context.Context, c model.Collection, id int64, fields model.Record) (model.Record, error)

	// Delete removes the record and every record cascading from it. It
	// persists even when nothing matched and reports whether a record existed.
	Delete(ctx context.Context, c model.Collection, id int64) (bool, error)

	// Mutate runs fn on a working copy of the document and persists the copy
	// when fn succeeds. fn must not call back into the repository.
	Mutate(ctx context.Context, fn func(doc model.Document) error) error
}
