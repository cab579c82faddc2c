// Package store persists the single portal document. Every backend loads
// and saves the document as a whole; there is no incremental persistence.
package store

import (
	"context"

	"portalapi/internal/model"
)

// Store loads and persists the whole document.
type Store interface {
	// Load returns the persisted document, creating or resetting it when the
	// backing data is absent or unreadable. The result is always normalized.
	Load(ctx context.Context) (model.Document, error)

	// Save overwrites the persisted document with doc.
	Save(ctx context.Context, doc model.Document) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
