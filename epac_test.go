package epac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac"
	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/store"
	"github.com/neurospin/epac/pkg/workflow"
)

func twoClassFlow(n int) epac.DataFlow {
	x := make(domain.FloatMatrix, n)
	y := make(domain.IntVector, n)
	for i := 0; i < n; i++ {
		c := i % 2
		y[i] = c
		v := float64(i % 5)
		if c == 1 {
			v += 10
		}
		x[i] = []float64{v}
	}
	return epac.DataFlow{"X": x, "y": y}
}

func newEngineTree(t *testing.T) workflow.Node {
	t.Helper()
	m, err := workflow.NewMethods(
		workflow.NewEstimator(estimators.NewNearestCentroid(0), workflow.WithFactory(estimators.FactoryNearestCentroid)),
		workflow.NewEstimator(estimators.NewMajority(), workflow.WithFactory(estimators.FactoryMajority)),
	)
	require.NoError(t, err)
	return workflow.NewCV(m, 3, workflow.WithCVSeed(7))
}

func TestEngineFitPredictReduce(t *testing.T) {
	ctx := context.Background()
	eng := epac.New(newEngineTree(t))
	flow := twoClassFlow(30)

	_, err := eng.FitPredict(ctx, flow)
	require.NoError(t, err)

	rs, err := eng.Reduce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	nc, ok := rs.Get("NearestCentroid")
	require.True(t, ok)
	mean, ok := nc.Float("mean_score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, mean, 1e-9)
}

func TestEngineKeys(t *testing.T) {
	eng := epac.New(newEngineTree(t))
	keys, err := eng.Keys("CV/CV(nb=*)")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestEngineSaveLoad(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	eng := epac.New(newEngineTree(t))
	flow := twoClassFlow(30)
	_, err = eng.FitPredict(ctx, flow)
	require.NoError(t, err)
	want, err := eng.Reduce(ctx)
	require.NoError(t, err)

	require.NoError(t, eng.Save(ctx, st))

	loaded, err := epac.Load(ctx, st)
	require.NoError(t, err)
	got, err := loaded.Reduce(ctx)
	require.NoError(t, err)

	require.Equal(t, want.Keys(), got.Keys())
	for _, key := range want.Keys() {
		a, _ := want.Get(key)
		b, _ := got.Get(key)
		av, ok := a.Float("mean_score/test")
		require.True(t, ok)
		bv, ok := b.Float("mean_score/test")
		require.True(t, ok)
		assert.InDelta(t, av, bv, 1e-9)
	}
}

func TestEngineExplicitStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	eng := epac.New(newEngineTree(t), epac.WithStore(st))

	_, err := eng.FitPredict(ctx, twoClassFlow(30))
	require.NoError(t, err)

	keys, err := st.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 6, "results land in the caller's store")
}
