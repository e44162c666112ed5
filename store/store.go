// Package store persists credential snapshots and per-number configuration
// in a path-addressed remote content store. All writes are guarded by an
// opaque revision token so concurrent writers are detected, never silently
// overwritten.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no object exists at the requested path.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means the supplied revision is stale relative to the
	// remote state. The caller must re-fetch and retry.
	ErrConflict = errors.New("store: revision conflict")
	// ErrUnavailable means the remote store could not be reached.
	ErrUnavailable = errors.New("store: unavailable")
)

// Entry is one object returned by a prefix listing. Listing order follows
// the remote store and is not chronological.
type Entry struct {
	Name     string
	Revision string
	Size     int64
}

// Store is the remote content store contract. Implementations make network
// calls on every operation and hold no local state.
type Store interface {
	// Get returns the payload and current revision at path.
	Get(ctx context.Context, path string) (payload []byte, revision string, err error)

	// Put creates or updates the object at path. revision must be the
	// last observed revision for updates, or empty for creation. The new
	// revision is returned.
	Put(ctx context.Context, path string, payload []byte, revision string) (string, error)

	// Delete removes the object at path at the given revision.
	Delete(ctx context.Context, path string, revision string) error

	// List returns every object whose full path starts with prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
}
