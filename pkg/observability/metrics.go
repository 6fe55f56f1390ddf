package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neurospin/epac/pkg/domain"
)

// Metrics counts workflow executions, store saves and reductions. Wire it
// to a run through Hooks.
type Metrics struct {
	nodeRuns   *prometheus.CounterVec
	nodeErrors *prometheus.CounterVec
	storeSaves prometheus.Counter
	reductions prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epac",
			Name:      "node_runs_total",
			Help:      "Node executions completed, by pass.",
		}, []string{"op"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epac",
			Name:      "node_errors_total",
			Help:      "Node executions failed, by pass.",
		}, []string{"op"}),
		storeSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epac",
			Name:      "store_saves_total",
			Help:      "Results persisted to the store.",
		}),
		reductions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epac",
			Name:      "reductions_total",
			Help:      "Bottom-up reduction steps performed.",
		}),
	}
	reg.MustRegister(m.nodeRuns, m.nodeErrors, m.storeSaves, m.reductions)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) {
			if ev.IsError {
				m.nodeErrors.WithLabelValues(ev.Op).Inc()
				return
			}
			m.nodeRuns.WithLabelValues(ev.Op).Inc()
		},
		OnStoreSave: func(_ context.Context, _ *domain.StoreEvent) {
			m.storeSaves.Inc()
		},
		OnReduce: func(_ context.Context, _ *domain.NodeEvent) {
			m.reductions.Inc()
		},
	}
}
