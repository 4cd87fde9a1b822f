// ABOUTME: ProgressStore capability interface and shared store errors
// ABOUTME: Local, remote and SQLite-backed stores all satisfy the same interface

package store

import (
	"context"
	"errors"

	"github.com/2389/folio-gateway/internal/progress"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the backing storage cannot be used
// (quota exceeded, access denied, unreachable).
var ErrUnavailable = errors.New("storage unavailable")

// Records maps an entity id to its progress record.
type Records map[progress.EntityID]*progress.Record

// ProgressStore is a flat per-identity map of progress records.
// Implementations overwrite by key; there are no multi-key transactions.
type ProgressStore interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id progress.EntityID) (*progress.Record, error)
	// Set stores rec under rec.PostID and returns the stored form.
	Set(ctx context.Context, rec *progress.Record) (*progress.Record, error)
	// List returns every record.
	List(ctx context.Context) (Records, error)
	// Delete removes the record for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id progress.EntityID) error
}

// Marker is implemented by stores that apply mark/unmark server-side.
type Marker interface {
	Mark(ctx context.Context, id progress.EntityID, locked bool) (*progress.Record, error)
}
