package workflow

import (
	"context"
	"fmt"

	"github.com/neurospin/epac/pkg/domain"
)

// sliceState holds a slicer's row selection: either one index sequence
// applied to every pass, or a role-keyed mapping selected by the pass
// (fit takes the train role, predict the test role). Once set it is
// immutable for the execution.
type sliceState struct {
	single []int
	roles  map[string][]int
}

func (s *sliceState) initialized() bool {
	return s != nil && (s.single != nil || len(s.roles) > 0)
}

// hasBothRoles reports whether the state carries a train and a test
// selection, the precondition for emitting a merged flow.
func (s *sliceState) hasBothRoles() bool {
	if s == nil {
		return false
	}
	_, train := s.roles[domain.RoleTrain]
	_, test := s.roles[domain.RoleTest]
	return train && test
}

// selectIndices resolves the row indices for one pass. Transform over a
// multi-role state needs an explicit role from the runner.
func (s *sliceState) selectIndices(op Op, runnerRole string) ([]int, error) {
	if !s.initialized() {
		return nil, fmt.Errorf("%w: slicing not initialized", domain.ErrConfiguration)
	}
	if s.single != nil {
		return s.single, nil
	}
	role := runnerRole
	switch op {
	case OpFit:
		role = domain.RoleTrain
	case OpPredict:
		role = domain.RoleTest
	case OpTransform, OpFitPredict:
		if role == "" {
			if len(s.roles) == 1 {
				for only := range s.roles {
					role = only
				}
			} else {
				return nil, fmt.Errorf("%w: ambiguous sample_set", domain.ErrConfiguration)
			}
		}
	}
	indices, ok := s.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: no %q sample set in slice state", domain.ErrConfiguration, role)
	}
	return indices, nil
}

// RowSlicer applies a row-index selection to the flowing arrays before
// recursing into its subtree. Splitters emit one fresh RowSlicer descriptor
// per virtual child index; the descriptor shares the subtree but owns its
// slice state.
type RowSlicer struct {
	base
	state *sliceState

	// applyOn restricts slicing to the named flow entries. When nil, every
	// entry whose first-axis length matches the expected length is sliced
	// and mismatched entries pass through untouched.
	applyOn []string

	// expectLen is the row count the slice plan was computed against.
	expectLen int
}

// NewRowSlicer creates a standalone slicer over a fixed index selection.
// Splitter-generated descriptors are built internally.
func NewRowSlicer(name string, indices []int, opts ...SlicerOption) *RowSlicer {
	s := &RowSlicer{base: newBase(name)}
	s.state = &sliceState{single: append([]int(nil), indices...)}
	for _, idx := range indices {
		if idx >= s.expectLen {
			s.expectLen = idx + 1
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlicerOption configures a RowSlicer.
type SlicerOption func(*RowSlicer)

// ApplyOn restricts slicing to the named flow entries.
func ApplyOn(names ...string) SlicerOption {
	return func(s *RowSlicer) {
		s.applyOn = names
	}
}

// newSliceDescriptor builds a splitter's per-index virtual child. ordinal
// renders as the "nb" signature argument; roles may be nil when the split
// plan has not been computed, which is sufficient for reduction.
func newSliceDescriptor(name string, ordinal int, state *sliceState, expectLen int, applyOn []string, parent Node, subtree []Node) *RowSlicer {
	s := &RowSlicer{
		base:      newBase(name),
		state:     state,
		applyOn:   applyOn,
		expectLen: expectLen,
	}
	s.setSignatureArgs(map[string]any{"nb": ordinal})
	s.markWildcard()
	s.parent = parent
	s.children = subtree
	return s
}

// Slice applies the state's row selection for the given pass to the flow.
func (s *RowSlicer) Slice(op Op, runnerRole string, flow domain.DataFlow) (domain.DataFlow, error) {
	indices, err := s.state.selectIndices(op, runnerRole)
	if err != nil {
		return nil, err
	}
	out := flow.Clone()
	if s.applyOn != nil {
		for _, name := range s.applyOn {
			arr, err := flow.Array(name)
			if err != nil {
				return nil, err
			}
			if s.expectLen > 0 && arr.Len() != s.expectLen {
				return nil, fmt.Errorf("%w: entry %q has %d rows, the slice plan covers %d", domain.ErrConfiguration, name, arr.Len(), s.expectLen)
			}
			out[name] = arr.Take(indices)
		}
		return out, nil
	}
	for name, v := range flow {
		arr, ok := v.(domain.Array)
		if !ok || arr.Len() != s.expectLen {
			continue
		}
		out[name] = arr.Take(indices)
	}
	return out, nil
}

func (s *RowSlicer) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	if op == OpFitPredict && s.state.hasBothRoles() {
		return s.runCombined(ctx, r, key, resKey, flow)
	}
	sliced, err := s.Slice(op, r.role, flow)
	if err != nil {
		return nil, fmt.Errorf("slicer %q: %w", key, err)
	}
	if err := fanChildren(ctx, r, s, op, key, resKey, sliced); err != nil {
		return nil, err
	}
	return sliced, nil
}

// runCombined handles the combined pass over a train/test split: the two
// roles are sliced together and fed downstream as one merged flow, so the
// subtree fits on this slicer's train rows and predicts on its test rows
// within a single visit.
func (s *RowSlicer) runCombined(ctx context.Context, r *runner, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	train, err := s.Slice(OpFit, r.role, flow)
	if err != nil {
		return nil, fmt.Errorf("slicer %q: %w", key, err)
	}
	test, err := s.Slice(OpPredict, r.role, flow)
	if err != nil {
		return nil, fmt.Errorf("slicer %q: %w", key, err)
	}
	merged := domain.MergeTrainTest(train, test)
	if err := fanChildren(ctx, r, s, OpFitPredict, key, resKey, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *RowSlicer) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return reduceChildren(ctx, r, s, key, nil)
}
