package reduce

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
)

func scoreGroup(values ...float64) []domain.Result {
	group := make([]domain.Result, len(values))
	for i, v := range values {
		r := domain.NewResult("Clf")
		r["score/test"] = v
		group[i] = r
	}
	return group
}

func TestSummaryStatMean(t *testing.T) {
	red := NewSummaryStat()
	out, err := red.Reduce("Clf", scoreGroup(0.8, 0.6, 0.7))
	require.NoError(t, err)

	mean, ok := out.Float("mean_score/test")
	require.True(t, ok)
	assert.InDelta(t, 0.7, mean, 1e-6)

	sd, ok := out.Float("sd_score/test")
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(0.02/3), sd, 1e-6)

	assert.Equal(t, "Clf", out.Key())
	_, kept := out["score/test"]
	assert.False(t, kept, "raw values must not be retained without keep")
}

func TestSummaryStatKeep(t *testing.T) {
	red := NewSummaryStat(WithKeep(true))
	out, err := red.Reduce("Clf", scoreGroup(0.8, 0.6, 0.7))
	require.NoError(t, err)

	raw, ok := out["score/test"].(domain.FloatVector)
	require.True(t, ok, "keep must retain the raw per-child values")
	assert.Equal(t, domain.FloatVector{0.8, 0.6, 0.7}, raw)
}

func TestSummaryStatNonNumericPassThrough(t *testing.T) {
	group := scoreGroup(0.5, 0.5)
	group[0]["model"] = "centroid"
	group[1]["model"] = "centroid"

	out, err := NewSummaryStat().Reduce("Clf", group)
	require.NoError(t, err)
	assert.Equal(t, "centroid", out["model"])
	_, hasMean := out["mean_model"]
	assert.False(t, hasMean)
}
