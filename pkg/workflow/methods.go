package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/neurospin/epac/pkg/domain"
)

// Methods fans an unchanged DataFlow to independent alternative subtrees.
// The given nodes are deep-copied at construction so no estimator state is
// shared between branches, and sibling signature collisions are resolved by
// attaching discriminating arguments. Unresolvable collisions fail here, at
// build time.
type Methods struct {
	base
}

// NewMethods builds a Methods splitter over copies of the given nodes.
func NewMethods(nodes ...Node) (*Methods, error) {
	m := &Methods{base: newBase("Methods")}
	for _, n := range nodes {
		attach(m, cloneNode(n))
	}
	if err := resolveSiblings(m.children); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Methods) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	return flow, fanChildren(ctx, r, m, op, key, resKey, flow)
}

func (m *Methods) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return reduceChildren(ctx, r, m, key, nil)
}

// Grid behaves as Methods but additionally marks every branch's result
// signature as a wildcard, so a reducer one level up folds the grid branches
// as a single statistical axis while each branch stays individually
// addressable by its node key.
type Grid struct {
	base
}

// NewGrid builds a Grid splitter over copies of the given nodes.
func NewGrid(nodes ...Node) (*Grid, error) {
	g := &Grid{base: newBase("Grid")}
	for _, n := range nodes {
		child := cloneNode(n)
		attach(g, child)
		Walk(child, func(cur Node) bool {
			cur.markWildcard()
			return true
		})
	}
	if err := resolveSiblings(g.children); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	return flow, fanChildren(ctx, r, g, op, key, resKey, flow)
}

func (g *Grid) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	return reduceChildren(ctx, r, g, key, nil)
}

// resolveSiblings disambiguates same-signature siblings. Colliding nodes are
// grouped by signature; the minimal set of constructor arguments that differ
// within a group is attached to each member's signature. Groups whose own
// parameters do not discriminate are retried with parameters harvested one
// tree level deeper, until every signature is unique or the candidate levels
// are exhausted.
func resolveSiblings(children []Node) error {
	for depth := 0; ; depth++ {
		groups := collidingGroups(children)
		if len(groups) == 0 {
			return nil
		}
		exhausted := true
		for _, group := range groups {
			params := make([]map[string]any, len(group))
			for i, n := range group {
				desc := descendantsAt(n, depth)
				if len(desc) == 0 {
					continue
				}
				exhausted = false
				params[i] = harvestParams(desc)
			}
			diff := differingArgs(params)
			for i, n := range group {
				args := make(map[string]any)
				for _, name := range diff {
					if v, ok := params[i][name]; ok {
						args[name] = v
					}
				}
				if len(args) > 0 {
					n.setSignatureArgs(args)
				}
			}
		}
		if exhausted {
			return fmt.Errorf("%w: sibling signatures %q cannot be disambiguated", domain.ErrIdentifiability, collidingGroups(children)[0][0].Signature())
		}
	}
}

func collidingGroups(children []Node) [][]Node {
	bySig := make(map[string][]Node)
	var order []string
	for _, n := range children {
		sig := n.Signature()
		if _, ok := bySig[sig]; !ok {
			order = append(order, sig)
		}
		bySig[sig] = append(bySig[sig], n)
	}
	var groups [][]Node
	for _, sig := range order {
		if len(bySig[sig]) > 1 {
			groups = append(groups, bySig[sig])
		}
	}
	return groups
}

// descendantsAt returns the nodes exactly depth levels below n.
func descendantsAt(n Node, depth int) []Node {
	if depth == 0 {
		return []Node{n}
	}
	var out []Node
	for _, c := range n.Children() {
		out = append(out, descendantsAt(c, depth-1)...)
	}
	return out
}

// harvestParams merges the parameters of a set of nodes; the first value
// seen for a name wins.
func harvestParams(nodes []Node) map[string]any {
	out := make(map[string]any)
	for _, n := range nodes {
		for k, v := range n.Parameters() {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// differingArgs returns the parameter names whose rendered values are not
// identical across every member of a group.
func differingArgs(params []map[string]any) []string {
	names := make(map[string]bool)
	var order []string
	for _, p := range params {
		for k := range p {
			if !names[k] {
				names[k] = true
				order = append(order, k)
			}
		}
	}
	sort.Strings(order)
	var diff []string
	for _, name := range order {
		first := ""
		same := true
		for i, p := range params {
			v, ok := p[name]
			rendered := "<absent>"
			if ok {
				rendered = fmt.Sprintf("%v", v)
			}
			if i == 0 {
				first = rendered
				continue
			}
			if rendered != first {
				same = false
				break
			}
		}
		if !same {
			diff = append(diff, name)
		}
	}
	return diff
}
