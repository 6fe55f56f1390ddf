package domain

import "errors"

// ErrConfiguration is returned when a pass reaches a node whose inputs or
// options make the requested operation ill-defined: a required flow entry is
// missing, a slicer is used before its slice state was initialized, or a role
// selection is ambiguous.
var ErrConfiguration = errors.New("configuration error")

// ErrIdentifiability is returned at construction time when Methods or Grid
// cannot disambiguate colliding child signatures after exhausting all
// candidate nodes.
var ErrIdentifiability = errors.New("nodes could not be differentiated by their arguments")

// ErrMergeConflict is returned when a merge-on-save finds differing values
// under an identical sub-key. It is always fatal, never silently resolved.
var ErrMergeConflict = errors.New("merge conflict")

// ErrKeyNotFound is returned when a store key cannot be found.
var ErrKeyNotFound = errors.New("key not found")
