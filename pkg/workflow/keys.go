package workflow

import (
	"context"
	"fmt"
	"path"

	"github.com/neurospin/epac/pkg/domain"
)

// EnumerateKeys lists every node key of the tree, splitter virtual children
// expanded, filtered by a glob-style pattern matched segment-wise ("*" does
// not cross the key separator). An empty pattern lists everything. Splitters
// whose child count is data-dependent and not yet planned enumerate no
// virtual children.
func EnumerateKeys(root Node, pattern string) ([]string, error) {
	var keys []string
	var walk func(n Node, key string) error
	walk = func(n Node, key string) error {
		match := pattern == ""
		if !match {
			ok, err := path.Match(pattern, key)
			if err != nil {
				return fmt.Errorf("bad key pattern %q: %w", pattern, err)
			}
			match = ok
		}
		if match {
			keys = append(keys, key)
		}
		if sp, ok := n.(Splitter); ok {
			for i := 0; i < sp.Len(); i++ {
				child, err := sp.ChildAt(i)
				if err != nil {
					return err
				}
				if err := walk(child, domain.KeyPush(key, child.Signature())); err != nil {
					return err
				}
			}
			return nil
		}
		for _, child := range n.Children() {
			if err := walk(child, domain.KeyPush(key, child.Signature())); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, root.Signature()); err != nil {
		return nil, err
	}
	return keys, nil
}

// ResolveKey walks root down to the node addressed by key, materializing
// splitter virtual children along the path. flow, when given, initializes
// the split plans crossed on the way so the returned node carries usable
// slice state; a nil flow resolves structure only. The second return value
// is the estimator-chain result-key prefix contributed by the wrappers above
// the resolved node.
func ResolveKey(root Node, key string, flow domain.DataFlow) (Node, string, error) {
	segments := domain.KeySplit(key)
	if len(segments) == 0 || segments[0] != root.Signature() {
		return nil, "", fmt.Errorf("key %q does not address this tree: %w", key, domain.ErrKeyNotFound)
	}
	cur := root
	resKey := ""
	for _, seg := range segments[1:] {
		next, contributed, err := stepInto(cur, seg, flow)
		if err != nil {
			return nil, "", fmt.Errorf("key %q: %w", key, err)
		}
		if contributed != "" {
			resKey = domain.KeyPush(resKey, contributed)
		}
		cur = next
	}
	return cur, resKey, nil
}

// stepInto descends one key segment from cur, returning the child and cur's
// contribution to the estimator-chain result key.
func stepInto(cur Node, seg string, flow domain.DataFlow) (Node, string, error) {
	if sp, ok := cur.(Splitter); ok {
		if i, isOrdinal := parseOrdinal(seg); isOrdinal {
			if flow != nil {
				if err := sp.EnsurePlan(flow); err != nil {
					return nil, "", err
				}
			}
			child, err := sp.ChildAt(i)
			if err != nil {
				return nil, "", err
			}
			if child.Signature() == seg {
				return child, "", nil
			}
		}
	}
	chain := ""
	for _, child := range cur.Children() {
		if child.Signature() != seg {
			if agg := resultChainKey(child); agg != "" {
				if _, isPipe := cur.(*Pipe); isPipe {
					chain = domain.KeyPush(chain, agg)
				}
			}
			continue
		}
		switch cur.(type) {
		case *Estimator, *TransformNode:
			return child, cur.SignatureAgg(), nil
		case *Pipe:
			// Members before the target contribute their chain keys.
			return child, chain, nil
		default:
			return child, "", nil
		}
	}
	return nil, "", fmt.Errorf("no child %q under %q: %w", seg, cur.Signature(), domain.ErrKeyNotFound)
}

// FitAt runs the fit pass on the subtree addressed by key.
func FitAt(ctx context.Context, root Node, key string, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	return runAt(ctx, root, key, OpFit, flow, opts)
}

// PredictAt runs the predict pass on the subtree addressed by key.
func PredictAt(ctx context.Context, root Node, key string, flow domain.DataFlow, opts ...RunOption) (domain.DataFlow, error) {
	return runAt(ctx, root, key, OpPredict, flow, opts)
}

func runAt(ctx context.Context, root Node, key string, op Op, flow domain.DataFlow, opts []RunOption) (domain.DataFlow, error) {
	r := newRunner(opts)
	ensureStore(root, r)
	node, resKey, err := ResolveKey(root, key, flow)
	if err != nil {
		return nil, err
	}
	return runNode(ctx, r, node, op, key, resKey, flow.Clone())
}

// FitPredictAt runs the combined fit-and-predict pass on the subtree
// addressed by key: the unit of work a distributed worker executes for one
// dispatched key. It persists the same Results a local FitPredict over the
// whole tree would leave under that key.
func FitPredictAt(ctx context.Context, root Node, key string, flow domain.DataFlow, opts ...RunOption) error {
	r := newRunner(opts)
	ensureStore(root, r)
	node, resKey, err := ResolveKey(root, key, flow)
	if err != nil {
		return err
	}
	_, err = runNode(ctx, r, node, OpFitPredict, key, resKey, flow.Clone())
	return err
}
