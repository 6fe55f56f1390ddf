package ports

import "github.com/neurospin/epac/pkg/domain"

// The estimator capability contract. An object usable as a workflow leaf
// must expose some subset of these interfaces. Wrappers are given the
// declared parameter names of each call at construction and subset the
// flowing DataFlow before invocation; no runtime introspection is performed.

// Fitter learns from the named arrays it declares as inputs.
type Fitter interface {
	Fit(flow domain.DataFlow) error
}

// Transformer maps input arrays to transformed arrays. The returned flow
// holds only the produced entries; the engine folds them back into the
// downstream flow.
type Transformer interface {
	Transform(flow domain.DataFlow) (domain.DataFlow, error)
}

// Predictor produces predictions from the input arrays.
type Predictor interface {
	Predict(flow domain.DataFlow) (domain.DataFlow, error)
}

// Scorer evaluates predictions against ground truth, returning named scalar
// metrics.
type Scorer interface {
	Score(flow domain.DataFlow) (map[string]float64, error)
}

// Named is implemented by estimators that carry their own signature name.
// Unnamed estimators get their Go type name.
type Named interface {
	Name() string
}

// Parameterized is implemented by estimators that expose their constructor
// arguments, enabling sibling signature collision resolution. Estimators of
// identical type without parameters cannot be disambiguated.
type Parameterized interface {
	Params() map[string]any
}

// Cloner is implemented by estimators that can produce an unfitted copy of
// themselves. Branch splitters clone wrapped estimators through it so
// sibling branches never share fitted state; estimators without it are
// shared by reference.
type Cloner interface {
	CloneEstimator() any
}
