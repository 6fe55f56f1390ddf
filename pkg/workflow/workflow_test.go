package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/reduce"
)

// classData builds a two-class dataset with well-separated class means, so a
// centroid classifier is exact and a majority baseline is not.
func classData(n int) domain.DataFlow {
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
	return domain.DataFlow{"X": x, "y": y}
}

func cvOverMethods(t *testing.T) *CV {
	t.Helper()
	m, err := NewMethods(
		NewEstimator(estimators.NewNearestCentroid(0)),
		NewEstimator(estimators.NewMajority()),
	)
	require.NoError(t, err)
	return NewCV(m, 3, WithCVSeed(7))
}

func TestCVFitPredictReduce(t *testing.T) {
	ctx := context.Background()
	cv := cvOverMethods(t)
	flow := classData(30)

	_, err := FitPredict(ctx, cv, flow)
	require.NoError(t, err)

	rs, err := Reduce(ctx, cv)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len(), "one aggregated result per method")

	nc, ok := rs.Get("NearestCentroid")
	require.True(t, ok)
	mean, ok := nc.Float("mean_score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, mean, 1e-9, "separable classes score perfectly on every fold")
	sd, ok := nc.Float("sd_score/test")
	require.True(t, ok)
	assert.InDelta(t, 0.0, sd, 1e-9)

	maj, ok := rs.Get("Majority")
	require.True(t, ok)
	mean, ok = maj.Float("mean_score/test")
	require.True(t, ok)
	assert.Less(t, mean, 1.0, "the constant baseline cannot match separable classes")
	assert.GreaterOrEqual(t, mean, 0.0)
}

func TestCVReduceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cv := cvOverMethods(t)
	flow := classData(30)

	_, err := FitPredict(ctx, cv, flow)
	require.NoError(t, err)

	first, err := Reduce(ctx, cv)
	require.NoError(t, err)
	second, err := Reduce(ctx, cv)
	require.NoError(t, err)

	require.Equal(t, first.Keys(), second.Keys())
	for _, key := range first.Keys() {
		a, _ := first.Get(key)
		b, _ := second.Get(key)
		assert.Equal(t, a.Payload(), b.Payload())
	}
}

func TestCVRunsAreDeterministicUnderSeed(t *testing.T) {
	ctx := context.Background()
	flow := classData(30)

	run := func() *domain.ResultSet {
		cv := cvOverMethods(t)
		_, err := FitPredict(ctx, cv, flow)
		require.NoError(t, err)
		rs, err := Reduce(ctx, cv)
		require.NoError(t, err)
		return rs
	}

	first := run()
	second := run()
	require.Equal(t, first.Keys(), second.Keys())
	for _, key := range first.Keys() {
		a, _ := first.Get(key)
		b, _ := second.Get(key)
		for _, metric := range []string{"mean_score/test", "sd_score/test"} {
			av, ok := a.Float(metric)
			require.True(t, ok)
			bv, ok := b.Float(metric)
			require.True(t, ok)
			assert.Equal(t, av, bv, "metric %s of %s", metric, key)
		}
	}
}

func TestCVNilReducerConcatenates(t *testing.T) {
	ctx := context.Background()
	m, err := NewMethods(NewEstimator(estimators.NewNearestCentroid(0)))
	require.NoError(t, err)
	cv := NewCV(m, 3, WithCVSeed(7), WithCVReducer(nil))
	flow := classData(30)

	_, err = FitPredict(ctx, cv, flow)
	require.NoError(t, err)

	rs, err := Reduce(ctx, cv)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len(), "same-key fold results collapse in the set")
	res, _ := rs.Get("NearestCentroid")
	_, hasMean := res["mean_score/test"]
	assert.False(t, hasMean, "without a reducer no statistics are computed")
	score, ok := res.Float("score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestPermsFitPredictReduce(t *testing.T) {
	ctx := context.Background()
	perms := NewPerms(NewEstimator(estimators.NewNearestCentroid(0)), 3, WithPermsSeed(5))
	flow := classData(30)

	_, err := FitPredict(ctx, perms, flow)
	require.NoError(t, err)

	rs, err := Reduce(ctx, perms)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	res, ok := rs.Get("NearestCentroid")
	require.True(t, ok)
	ref, ok := res.Float("score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, ref, 1e-9, "permutation 0 is the unpermuted reference")

	pval, ok := res.Float("pval_score/test")
	require.True(t, ok)
	assert.GreaterOrEqual(t, pval, 0.0)
	assert.LessOrEqual(t, pval, 1.0)
}

func TestCVLeaveOneOut(t *testing.T) {
	ctx := context.Background()
	m, err := NewMethods(NewEstimator(estimators.NewNearestCentroid(0)))
	require.NoError(t, err)
	cv := NewCV(m, 0, WithCVType(CVLOO))
	flow := classData(10)

	assert.Equal(t, 0, cv.Len(), "leave-one-out size is unknown before the plan")
	_, err = FitPredict(ctx, cv, flow)
	require.NoError(t, err)
	assert.Equal(t, 10, cv.Len())

	rs, err := Reduce(ctx, cv)
	require.NoError(t, err)
	res, ok := rs.Get("NearestCentroid")
	require.True(t, ok)
	mean, ok := res.Float("mean_score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, mean, 1e-9)
}

func TestPipeFeedsTransformedFlow(t *testing.T) {
	ctx := context.Background()
	pipe := NewPipe(
		NewTransformNode(estimators.NewScaler()),
		NewEstimator(estimators.NewNearestCentroid(0)),
	)
	flow := classData(30)

	_, err := FitPredict(ctx, pipe, flow)
	require.NoError(t, err)

	rs, err := Reduce(ctx, pipe)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	res := rs.Values()[0]
	assert.Equal(t, "Scaler/NearestCentroid", res.Key(), "the chain key names every wrapper in order")
	score, ok := res.Float("score/test")
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
}

// trainMeanRecorder scores with the mean of the labels it was fitted on,
// which makes visible exactly which rows each scoring call's fit saw.
type trainMeanRecorder struct {
	fitted    bool
	trainMean float64
}

func (m *trainMeanRecorder) Name() string { return "TrainMeanRecorder" }

func (m *trainMeanRecorder) Fit(flow domain.DataFlow) error {
	y, err := flow.Array("y")
	if err != nil {
		return err
	}
	labels, ok := y.(domain.IntVector)
	if !ok {
		return fmt.Errorf("want integer labels, got %T", y)
	}
	sum := 0
	for _, v := range labels {
		sum += v
	}
	m.trainMean = float64(sum) / float64(len(labels))
	m.fitted = true
	return nil
}

func (m *trainMeanRecorder) Score(flow domain.DataFlow) (map[string]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("score before fit")
	}
	return map[string]float64{"trainmean": m.trainMean}, nil
}

func TestCVPairsFitAndPredictPerFold(t *testing.T) {
	ctx := context.Background()
	cv := NewCV(NewEstimator(&trainMeanRecorder{}), 3,
		WithCVSeed(3),
		WithCVReducer(reduce.NewSummaryStat(reduce.WithKeep(true))))
	y := make(domain.IntVector, 12)
	for i := range y {
		y[i] = i
	}

	_, err := FitPredict(ctx, cv, domain.DataFlow{"y": y})
	require.NoError(t, err)

	rs, err := Reduce(ctx, cv)
	require.NoError(t, err)
	res, ok := rs.Get("TrainMeanRecorder")
	require.True(t, ok)
	raw, ok := res["trainmean/test"].(domain.FloatVector)
	require.True(t, ok)
	require.Len(t, raw, 3)

	require.Len(t, cv.plan, 3)
	for i, fold := range cv.plan {
		sum := 0
		for _, idx := range fold.train {
			sum += y[idx]
		}
		want := float64(sum) / float64(len(fold.train))
		assert.InDelta(t, want, raw[i], 1e-9, "fold %d must score with its own fitted state", i)
	}
}

func TestEstimatorMergedFlowFitsOnTrainAppliesOnBoth(t *testing.T) {
	ctx := context.Background()
	leaf := NewEstimator(estimators.NewNearestCentroid(0))
	train := domain.DataFlow{
		"X": domain.FloatMatrix{{0}, {1}, {10}, {11}},
		"y": domain.IntVector{0, 0, 1, 1},
	}
	test := domain.DataFlow{
		"X": domain.FloatMatrix{{2}, {12}},
		"y": domain.IntVector{0, 1},
	}

	_, err := FitPredict(ctx, leaf, domain.MergeTrainTest(train, test))
	require.NoError(t, err)

	rs, err := Reduce(ctx, leaf)
	require.NoError(t, err)
	res, ok := rs.Get("NearestCentroid")
	require.True(t, ok)
	for _, metric := range []string{"score/train", "score/test"} {
		v, ok := res.Float(metric)
		require.True(t, ok, metric)
		assert.InDelta(t, 1.0, v, 1e-9, metric)
	}
	pred, ok := res["pred/test"].(domain.IntVector)
	require.True(t, ok)
	assert.Equal(t, domain.IntVector{0, 1}, pred, "test rows are classified with the train-fitted centroids")
}

func TestTransformNodeMergedFlowLearnsFromTrainRole(t *testing.T) {
	ctx := context.Background()
	node := NewTransformNode(estimators.NewScaler())
	merged := domain.MergeTrainTest(
		domain.DataFlow{"X": domain.FloatMatrix{{1}, {3}}},
		domain.DataFlow{"X": domain.FloatMatrix{{5}}},
	)

	out, err := FitPredict(ctx, node, merged)
	require.NoError(t, err)
	require.True(t, out.IsMerged(), "the role split survives the transform")

	trainOut, testOut := domain.SplitTrainTest(out)
	x, err := trainOut.Array("X")
	require.NoError(t, err)
	assert.Equal(t, domain.FloatMatrix{{-1}, {1}}, x, "train rows center on the train mean")
	x, err = testOut.Array("X")
	require.NoError(t, err)
	assert.Equal(t, domain.FloatMatrix{{3}}, x, "test rows center on the train mean, not their own")
}

func TestFitPredictEmitsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	var enters, saves int
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { enters++ },
		OnStoreSave: func(ctx context.Context, e *domain.StoreEvent) { saves++ },
	}
	cv := cvOverMethods(t)

	_, err := FitPredict(ctx, cv, classData(30), WithHooks(hooks))
	require.NoError(t, err)
	assert.Greater(t, enters, 0)
	assert.Equal(t, 6, saves, "one saved result per method per fold")
}
