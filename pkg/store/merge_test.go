package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
)

func TestMergeValueDeepMerge(t *testing.T) {
	old := map[string]any{"a": 1.0, "nested": map[string]any{"x": 1.0}}
	next := map[string]any{"b": 2.0, "nested": map[string]any{"y": 2.0}}

	merged, err := MergeValue(old, next)
	require.NoError(t, err)

	m := merged.(map[string]any)
	assert.Equal(t, 1.0, m["a"])
	assert.Equal(t, 2.0, m["b"])
	nested := m["nested"].(map[string]any)
	assert.Equal(t, 1.0, nested["x"])
	assert.Equal(t, 2.0, nested["y"])
}

func TestMergeValueConflict(t *testing.T) {
	_, err := MergeValue(map[string]any{"a": 1.0}, map[string]any{"a": 2.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMergeConflict))
}

func TestMergeValueSameLeafIsIdempotent(t *testing.T) {
	merged, err := MergeValue(map[string]any{"a": 1.0}, map[string]any{"a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, merged.(map[string]any)["a"])
}

func TestMergeValueAppendsSequences(t *testing.T) {
	merged, err := MergeValue([]any{1.0}, []any{2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, merged)
}

func TestMergeValueResults(t *testing.T) {
	old := domain.NewResult("Clf")
	old["score/test"] = 0.8
	next := domain.NewResult("Clf")
	next["score/train"] = 0.9

	merged, err := MergeValue(old, next)
	require.NoError(t, err)

	res, ok := merged.(domain.Result)
	require.True(t, ok, "merging results must stay a Result")
	assert.Equal(t, 0.8, res["score/test"])
	assert.Equal(t, 0.9, res["score/train"])
	assert.Equal(t, "Clf", res.Key())
}

func TestMergeValueScalarMismatch(t *testing.T) {
	_, err := MergeValue(1.0, 2.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMergeConflict))

	merged, err := MergeValue(1.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, merged)
}
