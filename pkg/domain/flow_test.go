package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSplitTrainTest(t *testing.T) {
	train := DataFlow{"X": FloatMatrix{{1}, {2}}, "y": IntVector{0, 1}}
	test := DataFlow{"X": FloatMatrix{{3}}, "y": IntVector{1}}

	merged := MergeTrainTest(train, test)
	assert.True(t, merged.IsMerged())
	assert.Equal(t, FloatMatrix{{1}, {2}}, merged["X/train"])
	assert.Equal(t, IntVector{1}, merged["y/test"])

	backTrain, backTest := SplitTrainTest(merged)
	assert.False(t, backTrain.IsMerged())
	assert.Equal(t, train["X"], backTrain["X"])
	assert.Equal(t, test["y"], backTest["y"])
}

func TestSplitSharesUnsuffixedEntries(t *testing.T) {
	merged := MergeTrainTest(DataFlow{"X": FloatMatrix{{1}}}, DataFlow{"X": FloatMatrix{{2}}})
	merged["note"] = "shared"
	train, test := SplitTrainTest(merged)
	assert.Equal(t, "shared", train["note"])
	assert.Equal(t, "shared", test["note"])
	_, marked := train[KWSplitTrainTest]
	assert.False(t, marked, "the merged marker is dropped")
}

func TestFlowArray(t *testing.T) {
	flow := DataFlow{"X": FloatMatrix{{1}}, "note": "text"}

	arr, err := flow.Array("X")
	require.NoError(t, err)
	assert.Equal(t, 1, arr.Len())

	_, err = flow.Array("missing")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = flow.Array("note")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFlowCloneIsolatesEntries(t *testing.T) {
	flow := DataFlow{"X": FloatMatrix{{1}}}
	clone := flow.Clone()
	clone["X"] = FloatMatrix{{9}}
	assert.Equal(t, FloatMatrix{{1}}, flow["X"], "replacing a clone entry must not touch the original")
}

func TestFlowSub(t *testing.T) {
	flow := DataFlow{"X": FloatMatrix{{1}}, "y": IntVector{0}, "extra": 1}
	sub := flow.Sub([]string{"X", "missing"})
	assert.Equal(t, []string{"X"}, sub.Names())
}
