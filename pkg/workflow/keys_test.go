package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/store"
)

func TestEnumerateKeysExpandsVirtualChildren(t *testing.T) {
	cv := cvOverMethods(t)

	keys, err := EnumerateKeys(cv, "")
	require.NoError(t, err)
	assert.Len(t, keys, 13, "root, 3 folds, and each fold's methods subtree")
	assert.Contains(t, keys, "CV")
	assert.Contains(t, keys, "CV/CV(nb=2)")
	assert.Contains(t, keys, "CV/CV(nb=0)/Methods/NearestCentroid")
	assert.Contains(t, keys, "CV/CV(nb=1)/Methods/Majority")
}

func TestEnumerateKeysPattern(t *testing.T) {
	cv := cvOverMethods(t)

	keys, err := EnumerateKeys(cv, "CV/CV(nb=*)")
	require.NoError(t, err)
	assert.Equal(t, []string{"CV/CV(nb=0)", "CV/CV(nb=1)", "CV/CV(nb=2)"}, keys)
}

func TestEnumerateKeysUnplannedLOO(t *testing.T) {
	m, err := NewMethods(NewEstimator(estimators.NewNearestCentroid(0)))
	require.NoError(t, err)
	cv := NewCV(m, 0, WithCVType(CVLOO))

	keys, err := EnumerateKeys(cv, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CV"}, keys, "a data-dependent splitter enumerates no children before planning")
}

func TestResolveKeyStructureOnly(t *testing.T) {
	cv := cvOverMethods(t)

	node, resKey, err := ResolveKey(cv, "CV/CV(nb=1)/Methods/NearestCentroid", nil)
	require.NoError(t, err)
	assert.Equal(t, "NearestCentroid", node.Signature())
	assert.Equal(t, "", resKey, "splitters and method groups contribute nothing to the chain")
}

func TestResolveKeyInitializesSliceState(t *testing.T) {
	cv := cvOverMethods(t)
	flow := classData(30)

	node, _, err := ResolveKey(cv, "CV/CV(nb=1)", flow)
	require.NoError(t, err)
	slicer, ok := node.(*RowSlicer)
	require.True(t, ok)
	sliced, err := slicer.Slice(OpFit, "", flow)
	require.NoError(t, err)
	y, err := sliced.Array("y")
	require.NoError(t, err)
	assert.Equal(t, 20, y.Len(), "the fold's train role selects two thirds of the rows")
}

func TestResolveKeyPipeChainContribution(t *testing.T) {
	pipe := NewPipe(
		NewTransformNode(estimators.NewScaler()),
		NewEstimator(estimators.NewNearestCentroid(0)),
	)

	node, resKey, err := ResolveKey(pipe, "Pipe/NearestCentroid", nil)
	require.NoError(t, err)
	assert.Equal(t, "NearestCentroid", node.Signature())
	assert.Equal(t, "Scaler", resKey, "preceding chain members prefix the result key")
}

func TestResolveKeyRejectsForeignKey(t *testing.T) {
	cv := cvOverMethods(t)

	_, _, err := ResolveKey(cv, "Perms/Perm(nb=0)", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	_, _, err = ResolveKey(cv, "CV/CV(nb=0)/Nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestFitPredictAtMatchesLocalRun(t *testing.T) {
	ctx := context.Background()
	flow := classData(30)

	local := cvOverMethods(t)
	_, err := FitPredict(ctx, local, flow)
	require.NoError(t, err)
	want, err := Reduce(ctx, local)
	require.NoError(t, err)

	split := cvOverMethods(t)
	st := store.NewMemStore()
	for i := 0; i < 3; i++ {
		key := domain.KeyPush("CV", domain.FormatSignature("CV", map[string]any{"nb": i}))
		require.NoError(t, FitPredictAt(ctx, split, key, flow, WithStore(st)))
	}
	got, err := Reduce(ctx, split, WithStore(st))
	require.NoError(t, err)

	require.Equal(t, want.Keys(), got.Keys())
	for _, key := range want.Keys() {
		a, _ := want.Get(key)
		b, _ := got.Get(key)
		for _, metric := range []string{"mean_score/test", "sd_score/test"} {
			av, ok := a.Float(metric)
			require.True(t, ok)
			bv, ok := b.Float(metric)
			require.True(t, ok)
			assert.InDelta(t, av, bv, 1e-12, "metric %s of %s", metric, key)
		}
	}
}
