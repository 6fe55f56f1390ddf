package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DataFlow is the named mapping of array-like values propagated top-down
// through a workflow tree. Entries implementing Array are eligible for
// row-wise re-slicing; other entries pass through untouched.
type DataFlow map[string]any

// Clone returns a shallow copy of the flow. Array values are shared: slicing
// always produces fresh Arrays, so siblings never observe each other's
// re-sliced entries.
func (f DataFlow) Clone() DataFlow {
	out := make(DataFlow, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the entry names in sorted order.
func (f DataFlow) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Array returns the named entry as an Array, or an error wrapping
// ErrConfiguration when the entry is missing or not row-addressable.
func (f DataFlow) Array(name string) (Array, error) {
	v, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: required flow entry %q is missing", ErrConfiguration, name)
	}
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: flow entry %q is not row-addressable", ErrConfiguration, name)
	}
	return arr, nil
}

// Sub returns a new flow restricted to the given entry names. Missing names
// are skipped; wrappers validate required inputs themselves.
func (f DataFlow) Sub(names []string) DataFlow {
	out := make(DataFlow, len(names))
	for _, name := range names {
		if v, ok := f[name]; ok {
			out[name] = v
		}
	}
	return out
}

// IsMerged reports whether the flow carries the reserved merged
// train/test marker.
func (f DataFlow) IsMerged() bool {
	_, ok := f[KWSplitTrainTest]
	return ok
}

// MergeTrainTest combines a train flow and a test flow into one merged flow
// with per-name entries suffixed "/train" and "/test", and sets the reserved
// merged marker.
func MergeTrainTest(train, test DataFlow) DataFlow {
	out := make(DataFlow, len(train)+len(test)+1)
	for k, v := range train {
		out[k+TrainSuffix] = v
	}
	for k, v := range test {
		out[k+TestSuffix] = v
	}
	out[KWSplitTrainTest] = true
	return out
}

// SplitTrainTest separates a merged flow back into its train and test roles.
// Entries without a role suffix are shared by both sides; the reserved marker
// is dropped.
func SplitTrainTest(merged DataFlow) (train, test DataFlow) {
	train = make(DataFlow)
	test = make(DataFlow)
	for k, v := range merged {
		switch {
		case k == KWSplitTrainTest:
		case strings.HasSuffix(k, TrainSuffix):
			train[strings.TrimSuffix(k, TrainSuffix)] = v
		case strings.HasSuffix(k, TestSuffix):
			test[strings.TrimSuffix(k, TestSuffix)] = v
		default:
			train[k] = v
			test[k] = v
		}
	}
	return train, test
}
