package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/observability"
	"github.com/neurospin/epac/pkg/workflow"
)

func TestMetricsCountWorkflowRun(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	m, err := workflow.NewMethods(
		workflow.NewEstimator(estimators.NewNearestCentroid(0)),
		workflow.NewEstimator(estimators.NewMajority()),
	)
	require.NoError(t, err)
	cv := workflow.NewCV(m, 3, workflow.WithCVSeed(7))

	flow := domain.DataFlow{
		"X": domain.FloatMatrix{{0}, {10}, {1}, {11}, {2}, {12}, {3}, {13}, {4}, {14}, {0}, {10}},
		"y": domain.IntVector{0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1},
	}
	_, err = workflow.FitPredict(ctx, cv, flow, workflow.WithHooks(metrics.Hooks()))
	require.NoError(t, err)
	_, err = workflow.Reduce(ctx, cv, workflow.WithHooks(metrics.Hooks()))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counters := make(map[string]float64, len(families))
	for _, f := range families {
		total := 0.0
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		counters[f.GetName()] = total
	}
	assert.Greater(t, counters["epac_node_runs_total"], 0.0)
	assert.Equal(t, 6.0, counters["epac_store_saves_total"], "one save per method per fold")
	assert.Greater(t, counters["epac_reductions_total"], 0.0)
}

func TestMetricsCountErrors(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	// Predicting an unfitted classifier fails at the leaf.
	leaf := workflow.NewEstimator(estimators.NewNearestCentroid(0))
	_, err := workflow.Predict(ctx, leaf, domain.DataFlow{
		"X": domain.FloatMatrix{{0}},
		"y": domain.IntVector{0},
	}, workflow.WithHooks(metrics.Hooks()))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "epac_node_errors_total" && len(f.GetMetric()) > 0 {
			found = true
		}
	}
	assert.True(t, found, "failed passes must increment the error counter")
}
