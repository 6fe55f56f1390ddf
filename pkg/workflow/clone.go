package workflow

import "github.com/neurospin/epac/pkg/ports"

// NodeCloner is implemented by node types defined outside this package that
// want to participate in branch deep-copying.
type NodeCloner interface {
	CloneNode() Node
}

func (b *base) cloneBase() base {
	out := base{name: b.name, wildcard: b.wildcard}
	if b.args != nil {
		out.args = make(map[string]any, len(b.args))
		for k, v := range b.args {
			out.args[k] = v
		}
	}
	return out
}

func cloneObj(obj any) any {
	if c, ok := obj.(ports.Cloner); ok {
		return c.CloneEstimator()
	}
	return obj
}

func cloneChildrenInto(parent Node, children []Node) {
	for _, c := range children {
		attach(parent, cloneNode(c))
	}
}

// cloneNode deep-copies a subtree: fresh node structure throughout, wrapped
// estimators copied through ports.Cloner when they support it and shared by
// reference otherwise. Attached stores are not carried over.
func cloneNode(n Node) Node {
	switch v := n.(type) {
	case *Estimator:
		out := &Estimator{
			base:    v.cloneBase(),
			obj:     cloneObj(v.obj),
			inputs:  append([]string(nil), v.inputs...),
			factory: v.factory,
		}
		cloneChildrenInto(out, v.children)
		return out
	case *TransformNode:
		out := &TransformNode{
			base:    v.cloneBase(),
			inputs:  append([]string(nil), v.inputs...),
			factory: v.factory,
		}
		if tr, ok := cloneObj(v.tr).(ports.Transformer); ok {
			out.tr = tr
		} else {
			out.tr = v.tr
		}
		cloneChildrenInto(out, v.children)
		return out
	case *Pipe:
		out := &Pipe{base: v.cloneBase()}
		cloneChildrenInto(out, v.children)
		return out
	case *Methods:
		out := &Methods{base: v.cloneBase()}
		cloneChildrenInto(out, v.children)
		return out
	case *Grid:
		out := &Grid{base: v.cloneBase()}
		cloneChildrenInto(out, v.children)
		return out
	case *CV:
		out := &CV{
			base:    v.cloneBase(),
			nFolds:  v.nFolds,
			cvType:  v.cvType,
			seed:    v.seed,
			label:   v.label,
			reducer: v.reducer,
		}
		cloneChildrenInto(out, v.children)
		return out
	case *Perms:
		out := &Perms{
			base:    v.cloneBase(),
			nPerms:  v.nPerms,
			seed:    v.seed,
			column:  v.column,
			reducer: v.reducer,
		}
		cloneChildrenInto(out, v.children)
		return out
	case *RowSlicer:
		out := &RowSlicer{
			base:      v.cloneBase(),
			state:     v.state,
			applyOn:   append([]string(nil), v.applyOn...),
			expectLen: v.expectLen,
		}
		cloneChildrenInto(out, v.children)
		return out
	case *BestSearchRefit:
		out := &BestSearchRefit{
			base:   v.cloneBase(),
			nFolds: v.nFolds,
			cvType: v.cvType,
			seed:   v.seed,
			label:  v.label,
			metric: v.metric,
			argmin: v.argmin,
		}
		cloneChildrenInto(out, v.children)
		return out
	default:
		if c, ok := n.(NodeCloner); ok {
			return c.CloneNode()
		}
		return n
	}
}
