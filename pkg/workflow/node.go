package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
	"github.com/neurospin/epac/pkg/reduce"
	"github.com/neurospin/epac/pkg/store"
)

// Op identifies a top-down pass.
type Op int

const (
	OpFit Op = iota
	OpTransform
	OpPredict

	// OpFitPredict visits each node once, fitting and predicting in the
	// same descent. Fold slicers emit a merged train/test flow on this op,
	// so every leaf predicts with the fitted state of its own fold.
	OpFitPredict
)

func (op Op) String() string {
	switch op {
	case OpFit:
		return "fit"
	case OpTransform:
		return "transform"
	case OpPredict:
		return "predict"
	case OpFitPredict:
		return "fit_predict"
	}
	return "unknown"
}

// Node is one element of a workflow tree. The tree is a strict hierarchy:
// a parent exclusively owns its children. A Store may be attached to any
// node; it is shared, not owned, and children inherit the nearest ancestor
// store.
type Node interface {
	// SignatureName returns the node's class name, without arguments.
	SignatureName() string

	// Signature returns the primary signature: "Name" or "Name(k=v,...)"
	// carrying only the arguments needed to disambiguate sibling
	// collisions.
	Signature() string

	// SignatureAgg returns the secondary signature used in result keys.
	// Fold slicers and grid branches render their arguments as a wildcard
	// so that their Results collide and get folded by the level's Reducer.
	SignatureAgg() string

	// Parameters returns the constructor arguments considered by sibling
	// collision resolution.
	Parameters() map[string]any

	// Children returns the physical children, in construction order.
	Children() []Node

	// Parent returns the owning node, nil at the root.
	Parent() Node

	// Key returns the root-to-node path of signatures. It is unique
	// tree-wide and stable for the tree's lifetime.
	Key() string

	Store() ports.Store
	SetStore(ports.Store)

	setParent(Node)
	setSignatureArgs(args map[string]any)
	markWildcard()

	// run performs the node's local operation for one top-down pass and
	// recurses. key is the node's own key in this pass (virtual fold
	// children get their indexed key); resKey is the estimator-chain
	// prefix contributed by the wrappers above.
	run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error)

	// reduceAt folds the subtree's Results bottom-up, loading leaf
	// Results from the effective store under key.
	reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error)
}

// Splitter is implemented by nodes whose children are virtual: fold k,
// permutation k or method k is computable from the static definition, the
// input flow and the index alone.
type Splitter interface {
	Node

	// Len returns the fixed virtual child count.
	Len() int

	// ChildAt returns a fresh descriptor for the indexed child. The
	// descriptor carries slice state only after the split plan has been
	// initialized from data (EnsurePlan or a fit/transform pass).
	ChildAt(i int) (Node, error)

	// EnsurePlan lazily computes the data-dependent split plan, exactly
	// once.
	EnsurePlan(flow domain.DataFlow) error
}

// base holds the tree mechanics shared by every node implementation.
type base struct {
	name     string
	args     map[string]any
	wildcard bool
	parent   Node
	children []Node
	store    ports.Store
}

func newBase(name string) base {
	return base{name: name}
}

func (b *base) SignatureName() string { return b.name }

func (b *base) Signature() string {
	return domain.FormatSignature(b.name, b.args)
}

func (b *base) SignatureAgg() string {
	if b.wildcard {
		return b.name + "(" + domain.WildcardArgs + ")"
	}
	return b.Signature()
}

func (b *base) Parameters() map[string]any { return nil }

func (b *base) Children() []Node { return b.children }

func (b *base) Parent() Node { return b.parent }

func (b *base) Key() string {
	if b.parent == nil {
		return b.Signature()
	}
	return domain.KeyPush(b.parent.Key(), b.Signature())
}

func (b *base) Store() ports.Store { return b.store }

func (b *base) SetStore(s ports.Store) { b.store = s }

func (b *base) setParent(p Node) { b.parent = p }

func (b *base) markWildcard() { b.wildcard = true }

// setSignatureArgs attaches discriminating arguments to the signature.
// Successive collision-resolution rounds accumulate.
func (b *base) setSignatureArgs(args map[string]any) {
	if b.args == nil {
		b.args = make(map[string]any, len(args))
	}
	for k, v := range args {
		b.args[k] = v
	}
}

// attach wires child under parent.
func attach(parent Node, child Node) {
	child.setParent(parent)
	type childAppender interface{ appendChild(Node) }
	parent.(childAppender).appendChild(child)
}

func (b *base) appendChild(n Node) {
	b.children = append(b.children, n)
}

// effectiveStore returns the nearest attached store walking up from n,
// falling back to the runner's store.
func effectiveStore(n Node, r *runner) ports.Store {
	for cur := n; cur != nil; cur = cur.Parent() {
		if s := cur.Store(); s != nil {
			return s
		}
	}
	if r != nil {
		return r.store
	}
	return nil
}

// Walk visits n and every physical descendant, depth-first in construction
// order.
func Walk(n Node, visit func(Node) bool) bool {
	if !visit(n) {
		return false
	}
	for _, c := range n.Children() {
		if !Walk(c, visit) {
			return false
		}
	}
	return true
}

// WalkLeaves returns the physical leaves below n, left to right.
func WalkLeaves(n Node) []Node {
	var leaves []Node
	Walk(n, func(cur Node) bool {
		if len(cur.Children()) == 0 {
			leaves = append(leaves, cur)
		}
		return true
	})
	return leaves
}

// runner carries the cross-cutting state of one pass.
type runner struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	store  ports.Store
	role   string
}

// RunOption configures one execution or reduction pass.
type RunOption func(*runner)

// WithLogger sets the structured logger for the pass.
func WithLogger(logger *slog.Logger) RunOption {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks for the pass.
func WithHooks(hooks domain.LifecycleHooks) RunOption {
	return func(r *runner) {
		r.hooks = hooks
	}
}

// WithStore sets the fallback store used when no node on the path has one
// attached.
func WithStore(s ports.Store) RunOption {
	return func(r *runner) {
		r.store = s
	}
}

// WithRole selects the sample-set role for a Transform pass over slicers
// holding multiple roles.
func WithRole(role string) RunOption {
	return func(r *runner) {
		r.role = role
	}
}

func newRunner(opts []RunOption) *runner {
	r := &runner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ensureStore guarantees the tree has somewhere to persist leaf Results.
func ensureStore(root Node, r *runner) {
	if effectiveStore(root, r) == nil {
		root.SetStore(store.NewMemStore())
	}
}

// runNode fires hooks and logging around a node's local run.
func runNode(ctx context.Context, r *runner, n Node, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	if r.hooks.OnNodeEnter != nil {
		r.hooks.OnNodeEnter(ctx, nodeEvent(domain.EventNodeEnter, n, key, op.String(), false))
	}
	r.logger.Debug("node enter", "key", key, "op", op.String())
	out, err := n.run(ctx, r, op, key, resKey, flow)
	if r.hooks.OnNodeLeave != nil {
		r.hooks.OnNodeLeave(ctx, nodeEvent(domain.EventNodeLeave, n, key, op.String(), err != nil))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reduceNode fires hooks around a node's bottom-up reduction.
func reduceNode(ctx context.Context, r *runner, n Node, key string) (*domain.ResultSet, error) {
	if r.hooks.OnReduce != nil {
		r.hooks.OnReduce(ctx, nodeEvent(domain.EventReduce, n, key, "reduce", false))
	}
	return n.reduceAt(ctx, r, key)
}

func nodeEvent(t domain.EventType, n Node, key, op string, isErr bool) *domain.NodeEvent {
	return &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t},
		Key:       key,
		Signature: n.Signature(),
		Op:        op,
		IsError:   isErr,
	}
}

// saveResult persists a leaf Result under its full key.
func saveResult(ctx context.Context, r *runner, n Node, key string, res domain.Result) error {
	st := effectiveStore(n, r)
	if st == nil {
		return fmt.Errorf("%w: no store attached for result at %q", domain.ErrConfiguration, key)
	}
	if err := st.Save(ctx, key, res, false); err != nil {
		return fmt.Errorf("failed to save result at %q: %w", key, err)
	}
	if r.hooks.OnStoreSave != nil {
		r.hooks.OnStoreSave(ctx, &domain.StoreEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStoreSave},
			Key:       key,
		})
	}
	return nil
}

// loadResults loads whatever Result or ResultSet a previous predict pass
// left under key. A missing key yields an empty set: a distributed branch
// that never completed is visible to the recombiner only as missing keys.
func loadResults(ctx context.Context, r *runner, n Node, key string) (*domain.ResultSet, error) {
	st := effectiveStore(n, r)
	if st == nil {
		return domain.NewResultSet(), nil
	}
	obj, err := st.Load(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.NewResultSet(), nil
	}
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case domain.Result:
		return domain.NewResultSet(v), nil
	case *domain.ResultSet:
		return v, nil
	default:
		return nil, fmt.Errorf("entry %q does not hold results (got %T)", key, obj)
	}
}

// fanChildren runs every physical child with a clone of the unchanged flow.
func fanChildren(ctx context.Context, r *runner, n Node, op Op, key, resKey string, flow domain.DataFlow) error {
	for _, child := range n.Children() {
		childKey := domain.KeyPush(key, child.Signature())
		if _, err := runNode(ctx, r, child, op, childKey, resKey, flow.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// resultGroups collects children's ResultSets and groups their results by
// result key, preserving first-seen key order and child order inside each
// group. Identical keys across children (fold slicers, grid wildcards) are
// what triggers aggregation by the level's Reducer.
type resultGroups struct {
	order  []string
	groups map[string][]domain.Result
}

func newResultGroups() *resultGroups {
	return &resultGroups{groups: make(map[string][]domain.Result)}
}

func (g *resultGroups) add(rs *domain.ResultSet) {
	for _, res := range rs.Values() {
		key := res.Key()
		if _, ok := g.groups[key]; !ok {
			g.order = append(g.order, key)
		}
		g.groups[key] = append(g.groups[key], res)
	}
}

// fold applies the level's Reducer to each group; without a Reducer the
// groups are concatenated unchanged.
func (g *resultGroups) fold(red reduce.Reducer) (*domain.ResultSet, error) {
	out := domain.NewResultSet()
	for _, key := range g.order {
		group := g.groups[key]
		if red == nil {
			for _, res := range group {
				out.Put(res)
			}
			continue
		}
		folded, err := red.Reduce(key, group)
		if err != nil {
			return nil, fmt.Errorf("reduce of %q failed: %w", key, err)
		}
		out.Put(folded)
	}
	return out, nil
}

// reduceChildren is the default bottom-up step over physical children.
func reduceChildren(ctx context.Context, r *runner, n Node, key string, red reduce.Reducer) (*domain.ResultSet, error) {
	groups := newResultGroups()
	for _, child := range n.Children() {
		childKey := domain.KeyPush(key, child.Signature())
		rs, err := reduceNode(ctx, r, child, childKey)
		if err != nil {
			return nil, err
		}
		groups.add(rs)
	}
	return groups.fold(red)
}

// Fit runs the fit pass top-down from root: slicers select the train role,
// leaf wrappers fit their estimators.
func Fit(ctx context.Context, root Node, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	r := newRunner(opts)
	ensureStore(root, r)
	return runNode(ctx, r, root, OpFit, root.Signature(), "", flow.Clone())
}

// Transform runs the transform pass top-down from root. Slicers holding
// multiple roles require WithRole.
func Transform(ctx context.Context, root Node, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	r := newRunner(opts)
	ensureStore(root, r)
	return runNode(ctx, r, root, OpTransform, root.Signature(), "", flow.Clone())
}

// Predict runs the predict pass top-down from root: slicers select the test
// role, leaf wrappers predict, score and persist their Results.
func Predict(ctx context.Context, root Node, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	r := newRunner(opts)
	ensureStore(root, r)
	return runNode(ctx, r, root, OpPredict, root.Signature(), "", flow.Clone())
}

// FitPredict runs the combined pass top-down from root: each subtree is
// fitted and predicted in one visit, so under a splitter every fold predicts
// with its own fitted state. Separate Fit and Predict passes over a splitter
// would instead leave the shared estimators holding the last fold's fit.
func FitPredict(ctx context.Context, root Node, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	r := newRunner(opts)
	ensureStore(root, r)
	return runNode(ctx, r, root, OpFitPredict, root.Signature(), "", flow.Clone())
}

// Reduce folds the tree's Results bottom-up into one aggregated ResultSet.
// Reducing an already-reduced tree returns identical Results.
func Reduce(ctx context.Context, root Node, opts ...RunOption) (*domain.ResultSet, error) {
	r := newRunner(opts)
	return reduceNode(ctx, r, root, root.Signature())
}
