package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
	"github.com/neurospin/epac/pkg/reduce"
	"github.com/neurospin/epac/pkg/registry"
	"github.com/neurospin/epac/pkg/store"
)

// TreeKind is the store codec kind for persisted workflow trees.
const TreeKind = "tree"

func init() {
	store.RegisterCodec(store.Codec{
		Kind: TreeKind,
		Match: func(obj any) bool {
			_, ok := obj.(Node)
			return ok
		},
		Encode: func(obj any) ([]byte, error) {
			desc, err := describe(obj.(Node))
			if err != nil {
				return nil, err
			}
			return json.Marshal(desc)
		},
		Decode: func(data []byte) (any, error) {
			var desc nodeDesc
			if err := json.Unmarshal(data, &desc); err != nil {
				return nil, fmt.Errorf("unreadable tree entry: %w", err)
			}
			return buildNode(desc)
		},
	})
}

// nodeDesc is the serialized form of one node.
type nodeDesc struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Wildcard bool           `json:"wildcard,omitempty"`
	Factory  string         `json:"factory,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Inputs   []string       `json:"inputs,omitempty"`
	Children []nodeDesc     `json:"children,omitempty"`
}

const (
	typeEstimator  = "estimator"
	typeTransform  = "transform"
	typePipe       = "pipe"
	typeMethods    = "methods"
	typeGrid       = "grid"
	typeCV         = "cv"
	typePerms      = "perms"
	typeBestSearch = "best_search"
	typeSlicer     = "slicer"
)

func describeChildren(n Node) ([]nodeDesc, error) {
	out := make([]nodeDesc, 0, len(n.Children()))
	for _, c := range n.Children() {
		desc, err := describe(c)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

func describe(n Node) (nodeDesc, error) {
	desc := nodeDesc{Name: n.SignatureName()}
	if b := baseOf(n); b != nil {
		desc.Args = b.args
		desc.Wildcard = b.wildcard
	}
	var err error
	switch v := n.(type) {
	case *Estimator:
		if v.factory == "" {
			return desc, fmt.Errorf("estimator %q has no registry factory and cannot be persisted", v.Signature())
		}
		desc.Type = typeEstimator
		desc.Factory = v.factory
		desc.Params = v.Parameters()
		desc.Inputs = v.inputs
		desc.Children, err = describeChildren(v)
	case *TransformNode:
		if v.factory == "" {
			return desc, fmt.Errorf("transform %q has no registry factory and cannot be persisted", v.Signature())
		}
		desc.Type = typeTransform
		desc.Factory = v.factory
		desc.Params = v.Parameters()
		desc.Inputs = v.inputs
		desc.Children, err = describeChildren(v)
	case *Pipe:
		desc.Type = typePipe
		desc.Children, err = describeChildren(v)
	case *Methods:
		desc.Type = typeMethods
		desc.Children, err = describeChildren(v)
	case *Grid:
		desc.Type = typeGrid
		desc.Children, err = describeChildren(v)
	case *CV:
		desc.Type = typeCV
		desc.Params = map[string]any{
			"n_folds": v.nFolds,
			"cv_type": v.cvType,
			"seed":    v.seed,
			"label":   v.label,
			"reducer": describeReducer(v.reducer),
		}
		desc.Children, err = describeChildren(v)
	case *Perms:
		desc.Type = typePerms
		desc.Params = map[string]any{
			"n_perms": v.nPerms,
			"seed":    v.seed,
			"column":  v.column,
			"reducer": describeReducer(v.reducer),
		}
		desc.Children, err = describeChildren(v)
	case *BestSearchRefit:
		desc.Type = typeBestSearch
		desc.Params = map[string]any{
			"n_folds": v.nFolds,
			"cv_type": v.cvType,
			"seed":    v.seed,
			"label":   v.label,
			"metric":  v.metric,
			"argmin":  v.argmin,
		}
		desc.Children, err = describeChildren(v)
	case *RowSlicer:
		if v.state == nil || v.state.single == nil {
			return desc, fmt.Errorf("slicer %q holds no serializable index selection", v.Signature())
		}
		desc.Type = typeSlicer
		desc.Params = map[string]any{
			"indices":  v.state.single,
			"apply_on": v.applyOn,
		}
		desc.Children, err = describeChildren(v)
	default:
		return desc, fmt.Errorf("node %q of type %T cannot be persisted", n.Signature(), n)
	}
	return desc, err
}

// baseOf exposes the embedded base of the built-in node types.
func baseOf(n Node) *base {
	switch v := n.(type) {
	case *Estimator:
		return &v.base
	case *TransformNode:
		return &v.base
	case *Pipe:
		return &v.base
	case *Methods:
		return &v.base
	case *Grid:
		return &v.base
	case *CV:
		return &v.base
	case *Perms:
		return &v.base
	case *BestSearchRefit:
		return &v.base
	case *RowSlicer:
		return &v.base
	default:
		return nil
	}
}

type cvConfig struct {
	NFolds  int            `mapstructure:"n_folds"`
	CVType  string         `mapstructure:"cv_type"`
	Seed    int64          `mapstructure:"seed"`
	Label   string         `mapstructure:"label"`
	Reducer map[string]any `mapstructure:"reducer"`
}

type permsConfig struct {
	NPerms  int            `mapstructure:"n_perms"`
	Seed    int64          `mapstructure:"seed"`
	Column  string         `mapstructure:"column"`
	Reducer map[string]any `mapstructure:"reducer"`
}

type bestSearchConfig struct {
	NFolds int    `mapstructure:"n_folds"`
	CVType string `mapstructure:"cv_type"`
	Seed   int64  `mapstructure:"seed"`
	Label  string `mapstructure:"label"`
	Metric string `mapstructure:"metric"`
	Argmin bool   `mapstructure:"argmin"`
}

type slicerConfig struct {
	Indices []int    `mapstructure:"indices"`
	ApplyOn []string `mapstructure:"apply_on"`
}

// decodeParams decodes a persisted parameter map into a typed config,
// tolerating JSON's numeric widening.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid node parameters: %w", err)
	}
	return nil
}

func buildChildren(descs []nodeDesc) ([]Node, error) {
	out := make([]Node, 0, len(descs))
	for _, d := range descs {
		n, err := buildNode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func buildNode(desc nodeDesc) (Node, error) {
	children, err := buildChildren(desc.Children)
	if err != nil {
		return nil, err
	}
	var n Node
	switch desc.Type {
	case typeEstimator:
		obj, err := registry.New(desc.Factory, desc.Params)
		if err != nil {
			return nil, err
		}
		opts := []EstimatorOption{WithFactory(desc.Factory)}
		if desc.Name != "" {
			opts = append(opts, WithName(desc.Name))
		}
		if desc.Inputs != nil {
			opts = append(opts, WithInputs(desc.Inputs...))
		}
		e := NewEstimator(obj, opts...)
		for _, c := range children {
			attach(e, c)
		}
		n = e
	case typeTransform:
		obj, err := registry.New(desc.Factory, desc.Params)
		if err != nil {
			return nil, err
		}
		tr, ok := obj.(ports.Transformer)
		if !ok {
			return nil, fmt.Errorf("factory %q did not build a transformer", desc.Factory)
		}
		opts := []TransformOption{WithTransformFactory(desc.Factory)}
		if desc.Inputs != nil {
			opts = append(opts, WithTransformInputs(desc.Inputs...))
		}
		t := NewTransformNode(tr, opts...)
		if desc.Name != "" {
			t.name = desc.Name
		}
		for _, c := range children {
			attach(t, c)
		}
		n = t
	case typePipe:
		n = NewPipe(children...)
	case typeMethods:
		m, err := NewMethods(children...)
		if err != nil {
			return nil, err
		}
		n = m
	case typeGrid:
		g, err := NewGrid(children...)
		if err != nil {
			return nil, err
		}
		n = g
	case typeCV:
		var cfg cvConfig
		if err := decodeParams(desc.Params, &cfg); err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("cv node needs exactly one subtree, got %d", len(children))
		}
		red, err := buildReducer(cfg.Reducer)
		if err != nil {
			return nil, err
		}
		n = NewCV(children[0], cfg.NFolds,
			WithCVType(cfg.CVType),
			WithCVSeed(cfg.Seed),
			WithCVLabel(cfg.Label),
			WithCVReducer(red),
		)
	case typePerms:
		var cfg permsConfig
		if err := decodeParams(desc.Params, &cfg); err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("perms node needs exactly one subtree, got %d", len(children))
		}
		red, err := buildReducer(cfg.Reducer)
		if err != nil {
			return nil, err
		}
		n = NewPerms(children[0], cfg.NPerms,
			WithPermsSeed(cfg.Seed),
			WithPermuted(cfg.Column),
			WithPermsReducer(red),
		)
	case typeBestSearch:
		var cfg bestSearchConfig
		if err := decodeParams(desc.Params, &cfg); err != nil {
			return nil, err
		}
		b, err := NewBestSearchRefit(children,
			WithSearchFolds(cfg.NFolds),
			WithSearchCVType(cfg.CVType),
			WithSearchSeed(cfg.Seed),
			WithSearchLabel(cfg.Label),
			WithSearchMetric(cfg.Metric),
			WithSearchArgmin(cfg.Argmin),
		)
		if err != nil {
			return nil, err
		}
		n = b
	case typeSlicer:
		var cfg slicerConfig
		if err := decodeParams(desc.Params, &cfg); err != nil {
			return nil, err
		}
		var opts []SlicerOption
		if cfg.ApplyOn != nil {
			opts = append(opts, ApplyOn(cfg.ApplyOn...))
		}
		s := NewRowSlicer(desc.Name, cfg.Indices, opts...)
		for _, c := range children {
			attach(s, c)
		}
		n = s
	default:
		return nil, fmt.Errorf("tree entry has an unknown node type %q", desc.Type)
	}
	if b := baseOf(n); b != nil {
		if desc.Args != nil {
			b.args = desc.Args
		}
		b.wildcard = desc.Wildcard
	}
	return n, nil
}

const (
	reducerNone      = "none"
	reducerSummary   = "summary_stat"
	reducerPval      = "pval_permutations"
	directionLess    = "le"
	directionGreater = "ge"
)

func describeReducer(r reduce.Reducer) map[string]any {
	switch v := r.(type) {
	case nil:
		return map[string]any{"name": reducerNone}
	case *reduce.SummaryStat:
		return map[string]any{"name": reducerSummary, "keep": v.Keep()}
	case *reduce.PvalPermutations:
		dir := directionGreater
		if v.Direction() == reduce.LessEqual {
			dir = directionLess
		}
		return map[string]any{"name": reducerPval, "direction": dir}
	default:
		return map[string]any{"name": reducerNone}
	}
}

func buildReducer(m map[string]any) (reduce.Reducer, error) {
	name, _ := m["name"].(string)
	switch name {
	case "", reducerNone:
		return nil, nil
	case reducerSummary:
		keep, _ := m["keep"].(bool)
		return reduce.NewSummaryStat(reduce.WithKeep(keep)), nil
	case reducerPval:
		dir := reduce.GreaterEqual
		if d, _ := m["direction"].(string); d == directionLess {
			dir = reduce.LessEqual
		}
		return reduce.NewPvalPermutations(reduce.WithDirection(dir)), nil
	default:
		return nil, fmt.Errorf("unknown reducer %q in tree entry", name)
	}
}

// SaveTree persists the tree definition under the reserved tree prefix and
// dumps each node's attached in-memory store contents next to it, under the
// node's key and the reserved store suffix.
func SaveTree(ctx context.Context, st ports.Store, root Node) error {
	if err := st.Save(ctx, domain.TreePrefix, root, false); err != nil {
		return fmt.Errorf("failed to save tree definition: %w", err)
	}
	var saveErr error
	Walk(root, func(n Node) bool {
		ms, ok := n.Store().(*store.MemStore)
		if !ok {
			return true
		}
		prefix := domain.KeyPush(n.Key(), domain.StoreSuffix)
		contents := ms.Contents()
		keys := make([]string, 0, len(contents))
		for k := range contents {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := st.Save(ctx, domain.KeyPush(prefix, k), contents[k], false); err != nil {
				saveErr = fmt.Errorf("failed to save store entry %q: %w", k, err)
				return false
			}
		}
		return true
	})
	return saveErr
}

// LoadTree rebuilds a persisted tree and re-attaches each node's dumped
// store contents. Intersecting dumped keys under one node fail the load.
func LoadTree(ctx context.Context, st ports.Store) (Node, error) {
	obj, err := st.Load(ctx, domain.TreePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree definition: %w", err)
	}
	root, ok := obj.(Node)
	if !ok {
		return nil, fmt.Errorf("entry %q does not hold a tree (got %T)", domain.TreePrefix, obj)
	}
	var walkErr error
	Walk(root, func(n Node) bool {
		prefix := domain.KeyPush(n.Key(), domain.StoreSuffix)
		keys, err := st.Keys(ctx, prefix)
		if err != nil {
			walkErr = err
			return false
		}
		if len(keys) == 0 {
			return true
		}
		ms := store.NewMemStore()
		for _, k := range keys {
			entry, err := st.Load(ctx, k)
			if err != nil {
				walkErr = err
				return false
			}
			rel := strings.TrimPrefix(k, prefix+domain.KeySep)
			if err := ms.Save(ctx, rel, entry, true); err != nil {
				walkErr = fmt.Errorf("store contents of %q intersect: %w", n.Key(), err)
				return false
			}
		}
		n.SetStore(ms)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return root, nil
}

// SaveInput persists the run's input DataFlow under the reserved input
// prefix, so distributed workers can reload it.
func SaveInput(ctx context.Context, st ports.Store, flow domain.DataFlow) error {
	if err := st.Save(ctx, domain.InputPrefix, flow, false); err != nil {
		return fmt.Errorf("failed to save input flow: %w", err)
	}
	return nil
}

// LoadInput reloads a persisted input DataFlow.
func LoadInput(ctx context.Context, st ports.Store) (domain.DataFlow, error) {
	obj, err := st.Load(ctx, domain.InputPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load input flow: %w", err)
	}
	switch v := obj.(type) {
	case domain.DataFlow:
		return v, nil
	case map[string]any:
		return domain.DataFlow(v), nil
	default:
		return nil, fmt.Errorf("entry %q does not hold a data flow (got %T)", domain.InputPrefix, obj)
	}
}
