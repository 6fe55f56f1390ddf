package workflow

import (
	"context"
	"fmt"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/reduce"
	"github.com/neurospin/epac/pkg/store"
)

// SearchState is the BestSearchRefit lifecycle state.
type SearchState int

const (
	// Searching: no model selected yet; the next fit runs the internal
	// cross-validated search.
	Searching SearchState = iota

	// Refitting: a winning branch has been selected and refitted on the
	// full data; predict delegates to it.
	Refitting
)

func (s SearchState) String() string {
	if s == Refitting {
		return "refitting"
	}
	return "searching"
}

// BestParamsField is the Result entry recording the selected branch.
const BestParamsField = "best_params"

// BestSearchRefit selects the best of its candidate branches by an internal
// cross-validated search, then refits the winner on the full data. Fit runs
// the whole cycle each call: search over a scratch in-memory store, argmax
// (or argmin) of the configured metric with first-branch tie-break, then a
// fresh refit subtree built from the winning branch alone. Predict delegates
// to the refit subtree and merges its Result with the saved search summary.
type BestSearchRefit struct {
	base
	nFolds int
	cvType string
	seed   int64
	label  string
	metric string
	argmin bool

	state   SearchState
	refit   Node
	summary domain.Result
}

// SearchOption configures a BestSearchRefit.
type SearchOption func(*BestSearchRefit)

// WithSearchFolds sets the internal cross-validation fold count. Default 5.
func WithSearchFolds(n int) SearchOption {
	return func(b *BestSearchRefit) {
		b.nFolds = n
	}
}

// WithSearchCVType selects the internal fold strategy.
func WithSearchCVType(cvType string) SearchOption {
	return func(b *BestSearchRefit) {
		b.cvType = cvType
	}
}

// WithSearchSeed fixes the internal fold shuffle seed.
func WithSearchSeed(seed int64) SearchOption {
	return func(b *BestSearchRefit) {
		b.seed = seed
	}
}

// WithSearchLabel names the label flow entry for the internal folds.
func WithSearchLabel(name string) SearchOption {
	return func(b *BestSearchRefit) {
		b.label = name
	}
}

// WithSearchMetric names the reduced metric the selection optimizes.
// Default "mean_score/test".
func WithSearchMetric(metric string) SearchOption {
	return func(b *BestSearchRefit) {
		b.metric = metric
	}
}

// WithSearchArgmin selects the branch minimizing the metric instead of
// maximizing it.
func WithSearchArgmin(argmin bool) SearchOption {
	return func(b *BestSearchRefit) {
		b.argmin = argmin
	}
}

// NewBestSearchRefit builds the selection node over copies of the candidate
// branches.
func NewBestSearchRefit(branches []Node, opts ...SearchOption) (*BestSearchRefit, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("%w: best-search needs at least one candidate branch", domain.ErrConfiguration)
	}
	b := &BestSearchRefit{
		base:   newBase("BestSearchRefit"),
		nFolds: 5,
		cvType: CVRandom,
		label:  DefaultLabelName,
		metric: reduce.MeanPrefix + "score" + domain.TestSuffix,
	}
	for _, n := range branches {
		attach(b, cloneNode(n))
	}
	if err := resolveSiblings(b.children); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// State returns the current lifecycle state.
func (b *BestSearchRefit) State() SearchState { return b.state }

// Best returns the search summary of the last fit, nil before any fit.
func (b *BestSearchRefit) Best() domain.Result { return b.summary }

func (b *BestSearchRefit) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	switch op {
	case OpFit:
		return b.searchAndRefit(ctx, r, key, flow)
	case OpPredict:
		return b.predict(ctx, r, key, resKey, flow)
	case OpFitPredict:
		if flow.IsMerged() {
			// Under a fold slicer: search and refit on the fold's train
			// rows, predict on its test rows.
			train, test := domain.SplitTrainTest(flow)
			if _, err := b.searchAndRefit(ctx, r, key, train); err != nil {
				return nil, err
			}
			return b.predict(ctx, r, key, resKey, test)
		}
		if _, err := b.searchAndRefit(ctx, r, key, flow); err != nil {
			return nil, err
		}
		return b.predict(ctx, r, key, resKey, flow)
	case OpTransform:
		if b.state != Refitting {
			return nil, fmt.Errorf("%w: best-search %q not fitted", domain.ErrConfiguration, key)
		}
		return runNode(ctx, r, b.refit, op, domain.KeyPush(key, b.refit.Signature()), "", flow.Clone())
	}
	return flow, nil
}

// searchAndRefit runs the full selection cycle and transitions the state
// machine to Refitting.
func (b *BestSearchRefit) searchAndRefit(ctx context.Context, r *runner, key string, flow domain.DataFlow) (domain.DataFlow, error) {
	candidates := make([]Node, len(b.children))
	for i, c := range b.children {
		candidates[i] = cloneNode(c)
	}
	methods, err := NewMethods(candidates...)
	if err != nil {
		return nil, err
	}
	search := NewCV(methods, b.nFolds,
		WithCVType(b.cvType),
		WithCVSeed(b.seed),
		WithCVLabel(b.label),
	)
	scratch := store.NewMemStore()
	searchOpts := []RunOption{WithStore(scratch), WithLogger(r.logger)}
	if _, err := FitPredict(ctx, search, flow, searchOpts...); err != nil {
		return nil, fmt.Errorf("search of %q failed: %w", key, err)
	}
	rs, err := Reduce(ctx, search, searchOpts...)
	if err != nil {
		return nil, fmt.Errorf("search reduction of %q failed: %w", key, err)
	}

	winnerIdx, winner, err := b.selectBest(rs)
	if err != nil {
		return nil, fmt.Errorf("selection of %q failed: %w", key, err)
	}

	b.summary = domain.NewResult("")
	b.summary.Update(winner)
	b.summary[BestParamsField] = resultChainKey(b.children[winnerIdx])
	b.refit = cloneNode(b.children[winnerIdx])
	b.state = Refitting

	r.logger.Debug("best branch selected", "key", key, "best", b.summary[BestParamsField])
	if _, err := runNode(ctx, r, b.refit, OpFit, domain.KeyPush(key, b.refit.Signature()), "", flow.Clone()); err != nil {
		return nil, fmt.Errorf("refit of %q failed: %w", key, err)
	}
	return flow, nil
}

// selectBest picks the optimum branch, first index winning ties.
func (b *BestSearchRefit) selectBest(rs *domain.ResultSet) (int, domain.Result, error) {
	chainKeys := make([]string, len(b.children))
	for i, c := range b.children {
		chainKeys[i] = resultChainKey(c)
	}
	bestIdx := -1
	bestValue := 0.0
	var bestRes domain.Result
	for _, res := range rs.Values() {
		v, ok := res.Float(b.metric)
		if !ok {
			continue
		}
		idx := indexOf(chainKeys, res.Key())
		if idx < 0 {
			continue
		}
		better := bestIdx < 0 || (b.argmin && v < bestValue) || (!b.argmin && v > bestValue)
		if better || (v == bestValue && idx < bestIdx) {
			bestIdx = idx
			bestValue = v
			bestRes = res
		}
	}
	if bestIdx < 0 {
		return 0, nil, fmt.Errorf("%w: no branch produced metric %q", domain.ErrConfiguration, b.metric)
	}
	return bestIdx, bestRes, nil
}

func indexOf(values []string, v string) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}

// predict delegates to the refit subtree, then persists one Result merging
// the refit leaf's metrics with the search summary.
func (b *BestSearchRefit) predict(ctx context.Context, r *runner, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	if b.state != Refitting {
		return nil, fmt.Errorf("%w: best-search %q not fitted", domain.ErrConfiguration, key)
	}
	refitKey := domain.KeyPush(key, b.refit.Signature())
	out, err := runNode(ctx, r, b.refit, OpPredict, refitKey, "", flow.Clone())
	if err != nil {
		return nil, err
	}
	rs, err := reduceNode(ctx, r, b.refit, refitKey)
	if err != nil {
		return nil, err
	}
	res := domain.NewResult(domain.KeyPush(resKey, b.SignatureAgg()))
	for _, leafRes := range rs.Values() {
		res.Update(leafRes)
	}
	res.Update(b.summary)
	if err := saveResult(ctx, r, b, key, res); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BestSearchRefit) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return loadResults(ctx, r, b, key)
}
