/*
Package scheduler implements the distributed execution boundary. A driver
publishes the tree definition and the input flow to a shared store and
enumerates dispatchable subtree keys; independent workers each reload both,
execute the top-down passes of their assigned subtree and save Results under
their own key prefix; a final recombiner rebuilds the tree from the store
and runs the bottom-up reduction. Branches that never completed surface only
as missing keys at reduce time; retrying them is the dispatching system's
concern, not this package's.
*/
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neurospin/epac/internal/logging"
	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
	"github.com/neurospin/epac/pkg/workflow"
)

type config struct {
	logger *slog.Logger
}

// Option configures a scheduler operation.
type Option func(*config)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish persists the tree definition and the input flow to the shared
// store, making the run dispatchable.
func Publish(ctx context.Context, st ports.Store, root workflow.Node, flow domain.DataFlow) error {
	if err := workflow.SaveTree(ctx, st, root); err != nil {
		return err
	}
	return workflow.SaveInput(ctx, st, flow)
}

// Enumerate lists the subtree keys matching a glob-style pattern, splitter
// virtual children expanded. Each returned key is an independent unit of
// work.
func Enumerate(root workflow.Node, pattern string) ([]string, error) {
	return workflow.EnumerateKeys(root, pattern)
}

// RunWorker executes one dispatched key: it reloads the published tree and
// input flow from the shared store, fits and predicts the addressed subtree,
// and saves its Results back under the key prefix. Workers on disjoint keys
// need no coordination.
func RunWorker(ctx context.Context, st ports.Store, key string, opts ...Option) error {
	c := newConfig(opts)
	root, err := workflow.LoadTree(ctx, st)
	if err != nil {
		return err
	}
	flow, err := workflow.LoadInput(ctx, st)
	if err != nil {
		return err
	}
	c.logger.Info("worker start", "key", key)
	runOpts := []workflow.RunOption{
		workflow.WithStore(st),
		workflow.WithLogger(c.logger),
	}
	if err := workflow.FitPredictAt(ctx, root, key, flow, runOpts...); err != nil {
		return fmt.Errorf("worker for %q failed: %w", key, err)
	}
	c.logger.Info("worker done", "key", key)
	return nil
}

// Recombine rebuilds the tree from the shared store and folds every
// persisted partial Result into one aggregated ResultSet.
func Recombine(ctx context.Context, st ports.Store, opts ...Option) (*domain.ResultSet, error) {
	c := newConfig(opts)
	root, err := workflow.LoadTree(ctx, st)
	if err != nil {
		return nil, err
	}
	return workflow.Reduce(ctx, root,
		workflow.WithStore(st),
		workflow.WithLogger(c.logger),
	)
}
