package epac

import (
	"context"
	"log/slog"

	"github.com/neurospin/epac/internal/logging"
	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
	"github.com/neurospin/epac/pkg/workflow"
)

// Version is the epac release version.
const Version = "0.1.0"

// Re-exported core types, so simple callers need only this package and the
// node constructors.
type (
	DataFlow  = domain.DataFlow
	Result    = domain.Result
	ResultSet = domain.ResultSet
	Node      = workflow.Node
)

// Engine binds a workflow tree to a store, a logger and lifecycle hooks,
// and drives the two execution passes over it.
type Engine struct {
	root   workflow.Node
	store  ports.Store
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches the store Results are persisted to. Without one an
// in-memory store is attached at the root on first use.
func WithStore(st ports.Store) Option {
	return func(e *Engine) {
		e.store = st
	}
}

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks fired around node execution, store
// saves and reduction steps.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// New creates an Engine over a built tree.
func New(root workflow.Node, opts ...Option) *Engine {
	e := &Engine{root: root, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the underlying tree.
func (e *Engine) Root() workflow.Node { return e.root }

func (e *Engine) runOpts() []workflow.RunOption {
	return []workflow.RunOption{
		workflow.WithStore(e.store),
		workflow.WithLogger(e.logger),
		workflow.WithHooks(e.hooks),
	}
}

// Fit runs the fit pass over the whole tree.
func (e *Engine) Fit(ctx context.Context, flow DataFlow) (DataFlow, error) {
	return workflow.Fit(ctx, e.root, flow, e.runOpts()...)
}

// Transform runs the transform pass over the whole tree.
func (e *Engine) Transform(ctx context.Context, flow DataFlow) (DataFlow, error) {
	return workflow.Transform(ctx, e.root, flow, e.runOpts()...)
}

// Predict runs the predict pass, producing and persisting leaf Results.
func (e *Engine) Predict(ctx context.Context, flow DataFlow) (DataFlow, error) {
	return workflow.Predict(ctx, e.root, flow, e.runOpts()...)
}

// FitPredict fits and predicts with one flow in a single combined pass:
// under a splitter, every fold predicts with its own fitted state.
func (e *Engine) FitPredict(ctx context.Context, flow DataFlow) (DataFlow, error) {
	return workflow.FitPredict(ctx, e.root, flow, e.runOpts()...)
}

// Reduce folds the persisted Results bottom-up into one ResultSet.
func (e *Engine) Reduce(ctx context.Context) (*ResultSet, error) {
	return workflow.Reduce(ctx, e.root, e.runOpts()...)
}

// Keys lists the tree's node keys matching a glob-style pattern, splitter
// virtual children expanded.
func (e *Engine) Keys(pattern string) ([]string, error) {
	return workflow.EnumerateKeys(e.root, pattern)
}

// Save persists the tree definition and any in-memory node store contents
// to the given store.
func (e *Engine) Save(ctx context.Context, st ports.Store) error {
	return workflow.SaveTree(ctx, st, e.root)
}

// Load rebuilds an Engine from a store holding a persisted tree.
func Load(ctx context.Context, st ports.Store, opts ...Option) (*Engine, error) {
	root, err := workflow.LoadTree(ctx, st)
	if err != nil {
		return nil, err
	}
	return New(root, opts...), nil
}
