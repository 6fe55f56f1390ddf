package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
)

func sliceFlow() domain.DataFlow {
	return domain.DataFlow{
		"X":    domain.FloatMatrix{{0}, {1}, {2}, {3}},
		"y":    domain.IntVector{0, 0, 1, 1},
		"meta": domain.StringVector{"a", "b"},
		"note": "unsliced",
	}
}

func TestSliceSelectsRoleByOp(t *testing.T) {
	state := &sliceState{roles: map[string][]int{
		domain.RoleTrain: {0, 1, 2},
		domain.RoleTest:  {3},
	}}
	s := newSliceDescriptor("CV", 0, state, 4, nil, nil, nil)

	out, err := s.Slice(OpFit, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{0, 0, 1}, out["y"])
	assert.Equal(t, domain.FloatMatrix{{0}, {1}, {2}}, out["X"])

	out, err = s.Slice(OpPredict, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{1}, out["y"])
}

func TestSlicePassesMismatchedEntriesThrough(t *testing.T) {
	state := &sliceState{roles: map[string][]int{domain.RoleTrain: {0, 1}}}
	s := newSliceDescriptor("CV", 0, state, 4, nil, nil, nil)

	out, err := s.Slice(OpFit, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.StringVector{"a", "b"}, out["meta"], "entries with a different row count pass through")
	assert.Equal(t, "unsliced", out["note"])
}

func TestSliceTransformNeedsRole(t *testing.T) {
	state := &sliceState{roles: map[string][]int{
		domain.RoleTrain: {0, 1, 2},
		domain.RoleTest:  {3},
	}}
	s := newSliceDescriptor("CV", 0, state, 4, nil, nil, nil)

	_, err := s.Slice(OpTransform, "", sliceFlow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "ambiguous sample_set")

	out, err := s.Slice(OpTransform, domain.RoleTest, sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{1}, out["y"])
}

func TestSliceSingleRoleTransformNeedsNoHint(t *testing.T) {
	state := &sliceState{roles: map[string][]int{domain.RoleTrain: {1, 2}}}
	s := newSliceDescriptor("CV", 0, state, 4, nil, nil, nil)

	out, err := s.Slice(OpTransform, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{0, 1}, out["y"])
}

func TestSliceUninitializedState(t *testing.T) {
	s := newSliceDescriptor("CV", 0, nil, 0, nil, nil, nil)

	_, err := s.Slice(OpFit, "", sliceFlow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "slicing not initialized")
}

func TestSliceApplyOnRestriction(t *testing.T) {
	state := &sliceState{single: []int{3, 2, 1, 0}}
	s := newSliceDescriptor("Perm", 1, state, 4, []string{"y"}, nil, nil)

	out, err := s.Slice(OpFit, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{1, 1, 0, 0}, out["y"], "only the named entry is re-indexed")
	assert.Equal(t, domain.FloatMatrix{{0}, {1}, {2}, {3}}, out["X"])
}

func TestSliceApplyOnLengthMismatch(t *testing.T) {
	state := &sliceState{single: []int{3, 2, 1, 0}}
	s := newSliceDescriptor("Perm", 1, state, 4, []string{"meta"}, nil, nil)

	_, err := s.Slice(OpFit, "", sliceFlow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "the slice plan covers 4")
}

func TestSliceDescriptorSignature(t *testing.T) {
	s := newSliceDescriptor("CV", 2, nil, 0, nil, nil, nil)
	assert.Equal(t, "CV(nb=2)", s.Signature())
	assert.Equal(t, "CV(*)", s.SignatureAgg(), "fold results must collide under the wildcard")
}

func TestRowSlicerStandalone(t *testing.T) {
	s := NewRowSlicer("Upper", []int{2, 3})
	out, err := s.Slice(OpTransform, "", sliceFlow())
	require.NoError(t, err)
	assert.Equal(t, domain.IntVector{1, 1}, out["y"])
}
