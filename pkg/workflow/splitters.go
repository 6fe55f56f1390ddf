package workflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/reduce"
)

// DefaultLabelName is the flow entry splitters consult for row count and
// class labels.
const DefaultLabelName = "y"

// CV fans its subtree across cross-validation folds. Each virtual child is
// a fresh RowSlicer descriptor selecting fold i's train or test rows; the
// fold plan is computed lazily from the label array, exactly once. By
// default fold results are folded by a SummaryStat reducer.
type CV struct {
	base
	nFolds  int
	cvType  string
	seed    int64
	label   string
	reducer reduce.Reducer

	plan  []foldPair
	nRows int
}

// CVOption configures a CV splitter.
type CVOption func(*CV)

// WithCVType selects the fold strategy: "random" (default), "stratified" or
// "loo".
func WithCVType(cvType string) CVOption {
	return func(cv *CV) {
		cv.cvType = cvType
	}
}

// WithCVSeed fixes the fold shuffle seed.
func WithCVSeed(seed int64) CVOption {
	return func(cv *CV) {
		cv.seed = seed
	}
}

// WithCVLabel names the flow entry providing row count and class labels.
// Default "y".
func WithCVLabel(name string) CVOption {
	return func(cv *CV) {
		cv.label = name
	}
}

// WithCVReducer replaces the default SummaryStat fold reducer. A nil reducer
// concatenates fold results unchanged.
func WithCVReducer(r reduce.Reducer) CVOption {
	return func(cv *CV) {
		cv.reducer = r
	}
}

// NewCV wraps sub under a cross-validation splitter with nFolds folds.
func NewCV(sub Node, nFolds int, opts ...CVOption) *CV {
	cv := &CV{
		base:    newBase("CV"),
		nFolds:  nFolds,
		cvType:  CVRandom,
		label:   DefaultLabelName,
		reducer: reduce.NewSummaryStat(),
	}
	attach(cv, sub)
	for _, opt := range opts {
		opt(cv)
	}
	return cv
}

// Len returns the fold count. Leave-one-out is data-dependent: zero until
// the plan is computed.
func (cv *CV) Len() int {
	if cv.cvType == CVLOO {
		return len(cv.plan)
	}
	return cv.nFolds
}

// EnsurePlan computes the fold partitions from the label array, once.
func (cv *CV) EnsurePlan(flow domain.DataFlow) error {
	if cv.plan != nil {
		return nil
	}
	labels, err := flow.Array(cv.label)
	if err != nil {
		return fmt.Errorf("cv split: %w", err)
	}
	plan, err := foldPlan(cv.cvType, labels.Len(), cv.nFolds, cv.seed, labels)
	if err != nil {
		return err
	}
	cv.plan = plan
	cv.nRows = labels.Len()
	return nil
}

// ChildAt returns fold i's slicer descriptor. Without a computed plan the
// descriptor carries no slice state, which is sufficient for reduction.
func (cv *CV) ChildAt(i int) (Node, error) {
	if i < 0 || (cv.plan != nil && i >= len(cv.plan)) || (cv.plan == nil && cv.nFolds > 0 && i >= cv.nFolds) {
		return nil, fmt.Errorf("%w: fold %d out of range", domain.ErrConfiguration, i)
	}
	var state *sliceState
	if cv.plan != nil {
		state = &sliceState{roles: map[string][]int{
			domain.RoleTrain: cv.plan[i].train,
			domain.RoleTest:  cv.plan[i].test,
		}}
	}
	return newSliceDescriptor("CV", i, state, cv.nRows, nil, cv, cv.children), nil
}

func (cv *CV) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	if err := cv.EnsurePlan(flow); err != nil {
		return nil, err
	}
	if err := fanVirtual(ctx, r, cv, op, key, resKey, flow); err != nil {
		return nil, err
	}
	return flow, nil
}

func (cv *CV) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return reduceVirtual(ctx, r, cv, key, cv.reducer)
}

// Perms fans its subtree across random permutations of one flow entry,
// typically the label array. Virtual child 0 applies the identity
// permutation: the unpermuted reference run every permutation reducer
// compares against. By default results are folded by PvalPermutations.
type Perms struct {
	base
	nPerms  int
	seed    int64
	column  string
	reducer reduce.Reducer

	nRows int
}

// PermsOption configures a Perms splitter.
type PermsOption func(*Perms)

// WithPermsSeed fixes the permutation seed.
func WithPermsSeed(seed int64) PermsOption {
	return func(p *Perms) {
		p.seed = seed
	}
}

// WithPermuted names the flow entry to permute. Default "y".
func WithPermuted(name string) PermsOption {
	return func(p *Perms) {
		p.column = name
	}
}

// WithPermsReducer replaces the default PvalPermutations reducer. A nil
// reducer concatenates permutation results unchanged.
func WithPermsReducer(r reduce.Reducer) PermsOption {
	return func(p *Perms) {
		p.reducer = r
	}
}

// NewPerms wraps sub under a permutation splitter running nPerms children,
// the identity permutation included.
func NewPerms(sub Node, nPerms int, opts ...PermsOption) *Perms {
	p := &Perms{
		base:    newBase("Perms"),
		nPerms:  nPerms,
		column:  DefaultLabelName,
		reducer: reduce.NewPvalPermutations(),
	}
	attach(p, sub)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Perms) Len() int { return p.nPerms }

// EnsurePlan caches the permuted column's row count.
func (p *Perms) EnsurePlan(flow domain.DataFlow) error {
	if p.nRows > 0 {
		return nil
	}
	col, err := flow.Array(p.column)
	if err != nil {
		return fmt.Errorf("permutation split: %w", err)
	}
	p.nRows = col.Len()
	return nil
}

// ChildAt returns permutation i's slicer descriptor, re-indexing only the
// permuted column.
func (p *Perms) ChildAt(i int) (Node, error) {
	if i < 0 || i >= p.nPerms {
		return nil, fmt.Errorf("%w: permutation %d out of range", domain.ErrConfiguration, i)
	}
	var state *sliceState
	if p.nRows > 0 {
		state = &sliceState{single: permutation(p.nRows, i, p.seed)}
	}
	return newSliceDescriptor("Perm", i, state, p.nRows, []string{p.column}, p, p.children), nil
}

func (p *Perms) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	if err := p.EnsurePlan(flow); err != nil {
		return nil, err
	}
	if err := fanVirtual(ctx, r, p, op, key, resKey, flow); err != nil {
		return nil, err
	}
	return flow, nil
}

func (p *Perms) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return reduceVirtual(ctx, r, p, key, p.reducer)
}

// fanVirtual runs every virtual child of a splitter with a clone of the
// unchanged flow.
func fanVirtual(ctx context.Context, r *runner, s Splitter, op Op, key, resKey string, flow domain.DataFlow) error {
	for i := 0; i < s.Len(); i++ {
		child, err := s.ChildAt(i)
		if err != nil {
			return err
		}
		childKey := domain.KeyPush(key, child.Signature())
		if _, err := runNode(ctx, r, child, op, childKey, resKey, flow.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// reduceVirtual folds the results of a splitter's virtual children. When the
// child count is unknown in this process, the children that actually ran are
// discovered from the store's key space.
func reduceVirtual(ctx context.Context, r *runner, s Splitter, key string, red reduce.Reducer) (*domain.ResultSet, error) {
	count := s.Len()
	var indices []int
	if count > 0 {
		for i := 0; i < count; i++ {
			indices = append(indices, i)
		}
	} else {
		var err error
		indices, err = discoverOrdinals(ctx, r, s, key)
		if err != nil {
			return nil, err
		}
	}
	groups := newResultGroups()
	for _, i := range indices {
		child, err := s.ChildAt(i)
		if err != nil {
			return nil, err
		}
		childKey := domain.KeyPush(key, child.Signature())
		rs, err := reduceNode(ctx, r, child, childKey)
		if err != nil {
			return nil, err
		}
		groups.add(rs)
	}
	return groups.fold(red)
}

// discoverOrdinals lists the distinct virtual-child ordinals persisted under
// key, ascending.
func discoverOrdinals(ctx context.Context, r *runner, n Node, key string) ([]int, error) {
	st := effectiveStore(n, r)
	if st == nil {
		return nil, nil
	}
	keys, err := st.Keys(ctx, key)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var out []int
	for _, k := range keys {
		rest := strings.TrimPrefix(k, key+domain.KeySep)
		if rest == k {
			continue
		}
		seg := domain.KeySplit(rest)[0]
		i, ok := parseOrdinal(seg)
		if !ok || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// parseOrdinal extracts i from a "Name(nb=i)" signature.
func parseOrdinal(signature string) (int, bool) {
	open := strings.Index(signature, "(nb=")
	if open < 0 || !strings.HasSuffix(signature, ")") {
		return 0, false
	}
	i, err := strconv.Atoi(signature[open+len("(nb=") : len(signature)-1])
	if err != nil {
		return 0, false
	}
	return i, true
}
