package estimators

import (
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/registry"
)

// Factory names registered for tree rehydration.
const (
	FactoryScaler          = "scaler"
	FactoryNearestCentroid = "nearest_centroid"
	FactoryMajority        = "majority"
)

func init() {
	registry.Register(FactoryScaler, func(params map[string]any) (any, error) {
		return NewScaler(), nil
	})
	registry.Register(FactoryNearestCentroid, func(params map[string]any) (any, error) {
		var cfg struct {
			Shrink float64 `mapstructure:"shrink"`
		}
		if err := decode(params, &cfg); err != nil {
			return nil, err
		}
		return NewNearestCentroid(cfg.Shrink), nil
	})
	registry.Register(FactoryMajority, func(params map[string]any) (any, error) {
		return NewMajority(), nil
	})
}

func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// matrixOf reads the named entry as a FloatMatrix.
func matrixOf(flow domain.DataFlow, name string) (domain.FloatMatrix, error) {
	arr, err := flow.Array(name)
	if err != nil {
		return nil, err
	}
	m, ok := arr.(domain.FloatMatrix)
	if !ok {
		return nil, fmt.Errorf("%w: flow entry %q is not a float matrix", domain.ErrConfiguration, name)
	}
	return m, nil
}

// labelsOf reads the named entry as integer class labels. Float vectors are
// accepted to survive JSON round-trips of persisted flows.
func labelsOf(flow domain.DataFlow, name string) ([]int, error) {
	arr, err := flow.Array(name)
	if err != nil {
		return nil, err
	}
	switch v := arr.(type) {
	case domain.IntVector:
		return v, nil
	case domain.FloatVector:
		out := make([]int, len(v))
		for i, f := range v {
			out[i] = int(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: flow entry %q is not a label vector", domain.ErrConfiguration, name)
	}
}

// Scaler centers every column of X on the column means learned at fit time.
type Scaler struct {
	means []float64
}

// NewScaler creates an unfitted Scaler.
func NewScaler() *Scaler { return &Scaler{} }

func (s *Scaler) Name() string { return "Scaler" }

func (s *Scaler) CloneEstimator() any { return NewScaler() }

func (s *Scaler) Params() map[string]any { return nil }

func (s *Scaler) Fit(flow domain.DataFlow) error {
	x, err := matrixOf(flow, "X")
	if err != nil {
		return err
	}
	if len(x) == 0 {
		return fmt.Errorf("%w: cannot fit scaler on an empty matrix", domain.ErrConfiguration)
	}
	means := make([]float64, len(x[0]))
	for _, row := range x {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(x))
	}
	s.means = means
	return nil
}

func (s *Scaler) Transform(flow domain.DataFlow) (domain.DataFlow, error) {
	if s.means == nil {
		return nil, fmt.Errorf("%w: scaler not fitted", domain.ErrConfiguration)
	}
	x, err := matrixOf(flow, "X")
	if err != nil {
		return nil, err
	}
	out := make(domain.FloatMatrix, len(x))
	for i, row := range x {
		centered := make([]float64, len(row))
		for j, v := range row {
			centered[j] = v - s.means[j]
		}
		out[i] = centered
	}
	return domain.DataFlow{"X": out}, nil
}

// NearestCentroid classifies each row by the nearest class centroid.
// A positive shrink pulls centroids toward the global mean, a crude
// regularizer that makes the factory worth a grid search.
type NearestCentroid struct {
	shrink    float64
	classes   []int
	centroids map[int][]float64
}

// NewNearestCentroid creates an unfitted classifier.
func NewNearestCentroid(shrink float64) *NearestCentroid {
	return &NearestCentroid{shrink: shrink}
}

func (nc *NearestCentroid) Name() string { return "NearestCentroid" }

func (nc *NearestCentroid) CloneEstimator() any { return NewNearestCentroid(nc.shrink) }

func (nc *NearestCentroid) Params() map[string]any {
	return map[string]any{"shrink": nc.shrink}
}

func (nc *NearestCentroid) Fit(flow domain.DataFlow) error {
	x, err := matrixOf(flow, "X")
	if err != nil {
		return err
	}
	y, err := labelsOf(flow, "y")
	if err != nil {
		return err
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: X has %d rows but y has %d", domain.ErrConfiguration, len(x), len(y))
	}
	if len(x) == 0 {
		return fmt.Errorf("%w: cannot fit on an empty matrix", domain.ErrConfiguration)
	}
	dim := len(x[0])
	global := make([]float64, dim)
	sums := make(map[int][]float64)
	counts := make(map[int]int)
	var classes []int
	for i, row := range x {
		c := y[i]
		if sums[c] == nil {
			sums[c] = make([]float64, dim)
			classes = append(classes, c)
		}
		for j, v := range row {
			sums[c][j] += v
			global[j] += v
		}
		counts[c]++
	}
	for j := range global {
		global[j] /= float64(len(x))
	}
	centroids := make(map[int][]float64, len(classes))
	for _, c := range classes {
		centroid := make([]float64, dim)
		for j := range centroid {
			m := sums[c][j] / float64(counts[c])
			centroid[j] = m + nc.shrink*(global[j]-m)
		}
		centroids[c] = centroid
	}
	nc.classes = classes
	nc.centroids = centroids
	return nil
}

func (nc *NearestCentroid) Predict(flow domain.DataFlow) (domain.DataFlow, error) {
	if nc.centroids == nil {
		return nil, fmt.Errorf("%w: classifier not fitted", domain.ErrConfiguration)
	}
	x, err := matrixOf(flow, "X")
	if err != nil {
		return nil, err
	}
	pred := make(domain.IntVector, len(x))
	for i, row := range x {
		best := nc.classes[0]
		bestDist := math.Inf(1)
		for _, c := range nc.classes {
			d := sqDist(row, nc.centroids[c])
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		pred[i] = best
	}
	return domain.DataFlow{"pred": pred}, nil
}

func (nc *NearestCentroid) Score(flow domain.DataFlow) (map[string]float64, error) {
	return accuracy(flow)
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Majority predicts the most frequent training label for every row.
type Majority struct {
	label  int
	fitted bool
}

// NewMajority creates an unfitted baseline.
func NewMajority() *Majority { return &Majority{} }

func (m *Majority) Name() string { return "Majority" }

func (m *Majority) CloneEstimator() any { return NewMajority() }

func (m *Majority) Params() map[string]any { return nil }

func (m *Majority) Fit(flow domain.DataFlow) error {
	y, err := labelsOf(flow, "y")
	if err != nil {
		return err
	}
	if len(y) == 0 {
		return fmt.Errorf("%w: cannot fit on empty labels", domain.ErrConfiguration)
	}
	counts := make(map[int]int)
	best, bestCount := y[0], 0
	for _, c := range y {
		counts[c]++
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	m.label = best
	m.fitted = true
	return nil
}

func (m *Majority) Predict(flow domain.DataFlow) (domain.DataFlow, error) {
	if !m.fitted {
		return nil, fmt.Errorf("%w: classifier not fitted", domain.ErrConfiguration)
	}
	x, err := flow.Array("X")
	if err != nil {
		return nil, err
	}
	pred := make(domain.IntVector, x.Len())
	for i := range pred {
		pred[i] = m.label
	}
	return domain.DataFlow{"pred": pred}, nil
}

func (m *Majority) Score(flow domain.DataFlow) (map[string]float64, error) {
	return accuracy(flow)
}

// accuracy compares the "pred" entry against the "y" labels.
func accuracy(flow domain.DataFlow) (map[string]float64, error) {
	y, err := labelsOf(flow, "y")
	if err != nil {
		return nil, err
	}
	pred, err := labelsOf(flow, "pred")
	if err != nil {
		return nil, err
	}
	if len(y) != len(pred) {
		return nil, fmt.Errorf("%w: %d predictions for %d labels", domain.ErrConfiguration, len(pred), len(y))
	}
	hits := 0
	for i := range y {
		if y[i] == pred[i] {
			hits++
		}
	}
	return map[string]float64{"score": float64(hits) / float64(len(y))}, nil
}
