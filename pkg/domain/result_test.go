package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultKeyAndPayload(t *testing.T) {
	r := NewResult("Scaler/SVM")
	r["score/test"] = 0.9

	assert.Equal(t, "Scaler/SVM", r.Key())
	payload := r.Payload()
	assert.Equal(t, 0.9, payload["score/test"])
	_, hasKey := payload[ResultKeyField]
	assert.False(t, hasKey)
}

func TestResultUpdateKeepsKey(t *testing.T) {
	r := NewResult("A")
	other := NewResult("B")
	other["x"] = 1.0

	r.Update(other)
	assert.Equal(t, "A", r.Key())
	assert.Equal(t, 1.0, r["x"])
}

func TestResultJSONRoundTrip(t *testing.T) {
	r := NewResult("SVM")
	r["score/test"] = 0.75
	r["pred/test"] = FloatVector{1, 0, 1}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "SVM", back.Key())
	v, ok := back.Float("score/test")
	require.True(t, ok)
	assert.Equal(t, 0.75, v)
	assert.Equal(t, FloatVector{1, 0, 1}, back["pred/test"], "numeric slices revive as vectors")
}

func TestReviveMatrix(t *testing.T) {
	raw := []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}
	revived := Revive(raw)
	m, ok := revived.(FloatMatrix)
	require.True(t, ok, "nested numeric slices revive as a matrix")
	assert.Equal(t, FloatMatrix{{1, 2}, {3, 4}}, m)
}

func TestReviveBlobRef(t *testing.T) {
	raw := map[string]any{blobRefField: "abc123"}
	revived := Revive(raw)
	ref, ok := revived.(BlobRef)
	require.True(t, ok)
	assert.Equal(t, "abc123", ref.Handle)
}

func TestResultSetPreservesOrder(t *testing.T) {
	rs := NewResultSet(NewResult("b"), NewResult("a"), NewResult("c"))
	assert.Equal(t, []string{"b", "a", "c"}, rs.Keys())

	replacement := NewResult("a")
	replacement["x"] = 1.0
	rs.Put(replacement)
	assert.Equal(t, []string{"b", "a", "c"}, rs.Keys(), "replacing keeps the original position")
	got, ok := rs.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, got["x"])
}

func TestResultSetMerge(t *testing.T) {
	a := NewResultSet(NewResult("x"))
	b := NewResultSet(NewResult("y"))
	a.Merge(b)
	assert.Equal(t, []string{"x", "y"}, a.Keys())
	a.Merge(nil)
	assert.Equal(t, 2, a.Len())
}

func TestResultSetJSONRoundTrip(t *testing.T) {
	first := NewResult("x")
	first["score/test"] = 0.5
	rs := NewResultSet(first, NewResult("y"))

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	back := NewResultSet()
	require.NoError(t, json.Unmarshal(data, back))
	assert.Equal(t, []string{"x", "y"}, back.Keys())
	got, _ := back.Get("x")
	v, ok := got.Float("score/test")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}
