package reduce

import (
	"math"

	"github.com/neurospin/epac/pkg/domain"
)

const (
	// MeanPrefix and SDPrefix name the aggregated metrics emitted by
	// SummaryStat.
	MeanPrefix = "mean_"
	SDPrefix   = "sd_"
)

// SummaryStat folds each numeric metric of a group into its mean and
// standard deviation, emitted under "mean_<metric>" and "sd_<metric>". With
// the keep flag the raw per-child values are retained under the original
// metric name. Non-numeric metrics pass through the first child's value.
type SummaryStat struct {
	keep bool
}

// SummaryOption configures a SummaryStat.
type SummaryOption func(*SummaryStat)

// WithKeep retains the raw per-child metric values alongside the summary.
func WithKeep(keep bool) SummaryOption {
	return func(s *SummaryStat) {
		s.keep = keep
	}
}

// NewSummaryStat creates a SummaryStat reducer.
func NewSummaryStat(opts ...SummaryOption) *SummaryStat {
	s := &SummaryStat{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keep reports whether raw per-child values are retained.
func (s *SummaryStat) Keep() bool { return s.keep }

func (s *SummaryStat) Reduce(key string, group []domain.Result) (domain.Result, error) {
	out := domain.NewResult(key)
	for _, name := range metricNames(group) {
		values, numeric := collectFloats(group, name)
		if !numeric {
			for _, res := range group {
				if v, ok := res[name]; ok {
					out[name] = v
					break
				}
			}
			continue
		}
		out[MeanPrefix+name] = mean(values)
		out[SDPrefix+name] = sd(values)
		if s.keep {
			out[name] = domain.FloatVector(values)
		}
	}
	return out, nil
}

// collectFloats gathers the named metric across a group. The metric counts
// as numeric only when every child carrying it holds a convertible value.
func collectFloats(group []domain.Result, name string) ([]float64, bool) {
	var values []float64
	for _, res := range group {
		v, ok := res[name]
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		values = append(values, f)
	}
	return values, len(values) > 0
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sd is the population standard deviation.
func sd(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
