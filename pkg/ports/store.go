package ports

import (
	"context"
)

// Store defines the interface for persisting node state and results.
// It is attached to a workflow tree, not owned by it: several nodes (or
// several worker processes) may share one Store.
//
// Save with merge=false overwrites unconditionally. With merge=true an
// existing mapping value is deep-merged entry by entry (a sub-key present
// with a differing value on both sides is a fatal domain.ErrMergeConflict)
// and an existing sequence value is appended to. Merge-on-save is monotonic:
// a value, once written, is never silently replaced by a different one.
//
// Load returns the exact object saved at an exact key. When key is only a
// prefix under which several entries exist, Load reconstructs an aggregate
// map of relative sub-key to object. A missing key is domain.ErrKeyNotFound.
//
// Implementations segregate large array-valued fields of saved objects
// (declared through domain.BlobHolder) into a separate blob region and
// re-substitute them at load time; loads of the blob region use a bounded
// retry on transient read failures.
type Store interface {
	Save(ctx context.Context, key string, obj any, merge bool) error
	Load(ctx context.Context, key string) (any, error)

	// Keys lists every stored key beginning with prefix, sorted. The blob
	// region is never listed.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
