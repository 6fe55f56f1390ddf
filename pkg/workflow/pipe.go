package workflow

import (
	"context"

	"github.com/neurospin/epac/pkg/domain"
)

// Pipe composes its children as a sequential chain: each child's output
// DataFlow feeds the next. Reduction passes through the terminal child, the
// chain's result producer.
type Pipe struct {
	base
}

// NewPipe chains the given nodes in order.
func NewPipe(nodes ...Node) *Pipe {
	p := &Pipe{base: newBase("Pipe")}
	for _, n := range nodes {
		attach(p, n)
	}
	return p
}

func (p *Pipe) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	cur := flow
	curResKey := resKey
	for _, child := range p.children {
		childKey := domain.KeyPush(key, child.Signature())
		out, err := runNode(ctx, r, child, op, childKey, curResKey, cur)
		if err != nil {
			return nil, err
		}
		cur = out
		if agg := resultChainKey(child); agg != "" {
			curResKey = domain.KeyPush(curResKey, agg)
		}
	}
	return cur, nil
}

func (p *Pipe) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	if len(p.children) == 0 {
		return domain.NewResultSet(), nil
	}
	last := p.children[len(p.children)-1]
	return reduceNode(ctx, r, last, domain.KeyPush(key, last.Signature()))
}

// resultChainKey returns the estimator-chain key a subtree contributes to
// its leaves' result keys. Splitters and slicers contribute nothing, which
// is what makes fold and permutation results collide for reduction.
func resultChainKey(n Node) string {
	switch v := n.(type) {
	case *Estimator:
		return v.SignatureAgg()
	case *TransformNode:
		return v.SignatureAgg()
	case *BestSearchRefit:
		return v.SignatureAgg()
	case *Pipe:
		out := ""
		for _, c := range v.children {
			if agg := resultChainKey(c); agg != "" {
				out = domain.KeyPush(out, agg)
			}
		}
		return out
	default:
		return ""
	}
}
