package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
)

func newSearch(t *testing.T, opts ...SearchOption) *BestSearchRefit {
	t.Helper()
	b, err := NewBestSearchRefit([]Node{
		NewEstimator(estimators.NewNearestCentroid(0)),
		NewEstimator(estimators.NewMajority()),
	}, append([]SearchOption{WithSearchFolds(3), WithSearchSeed(11)}, opts...)...)
	require.NoError(t, err)
	return b
}

func TestBestSearchSelectsWinner(t *testing.T) {
	ctx := context.Background()
	b := newSearch(t)
	flow := classData(30)

	assert.Equal(t, Searching, b.State())
	assert.Nil(t, b.Best())

	_, err := Fit(ctx, b, flow)
	require.NoError(t, err)

	assert.Equal(t, Refitting, b.State())
	best := b.Best()
	require.NotNil(t, best)
	assert.Equal(t, "NearestCentroid", best[BestParamsField])
	mean, ok := best.Float("mean_score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, mean, 1e-9)
}

func TestBestSearchPredictAndReduce(t *testing.T) {
	ctx := context.Background()
	b := newSearch(t)
	flow := classData(30)

	_, err := Fit(ctx, b, flow)
	require.NoError(t, err)
	_, err = Predict(ctx, b, flow)
	require.NoError(t, err)

	rs, err := Reduce(ctx, b)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	res := rs.Values()[0]
	assert.Equal(t, "BestSearchRefit", res.Key())
	assert.Equal(t, "NearestCentroid", res[BestParamsField])
	score, ok := res.Float("score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9, "the refit winner predicts the full data")
}

func TestBestSearchPredictBeforeFit(t *testing.T) {
	ctx := context.Background()
	b := newSearch(t)

	_, err := Predict(ctx, b, classData(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBestSearchArgmin(t *testing.T) {
	ctx := context.Background()
	b := newSearch(t, WithSearchArgmin(true))

	_, err := Fit(ctx, b, classData(30))
	require.NoError(t, err)
	assert.Equal(t, "Majority", b.Best()[BestParamsField], "argmin picks the weaker branch")
}

func TestBestSearchRefitLeavesNoSearchResults(t *testing.T) {
	ctx := context.Background()
	b := newSearch(t)
	flow := classData(30)

	_, err := Fit(ctx, b, flow)
	require.NoError(t, err)
	_, err = Predict(ctx, b, flow)
	require.NoError(t, err)

	st := b.Store()
	require.NotNil(t, st, "predicting attaches a store at the root")
	keys, err := st.Keys(ctx, "")
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotContains(t, k, "CV(nb=", "search folds run against a scratch store, not the tree store")
	}
}

func TestBestSearchNeedsBranches(t *testing.T) {
	_, err := NewBestSearchRefit(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
