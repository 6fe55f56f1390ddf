package workflow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
)

// Estimator wraps an estimator-capable object as a workflow node. The
// wrapped object exposes any subset of the capability ports; the wrapper
// subsets the flowing DataFlow to the declared input names before each call.
//
// As a leaf, a predict pass produces a Result holding predictions and
// scores, persisted under the node's key. As an internal node, the wrapper
// behaves as a transformer feeding its subtree.
type Estimator struct {
	base
	obj     any
	inputs  []string
	factory string
}

// EstimatorOption configures an Estimator wrapper.
type EstimatorOption func(*Estimator)

// WithInputs declares the flow entries passed to the wrapped calls. Without
// a declaration the whole flow is passed.
func WithInputs(names ...string) EstimatorOption {
	return func(e *Estimator) {
		e.inputs = names
	}
}

// WithName overrides the signature name derived from the wrapped object.
func WithName(name string) EstimatorOption {
	return func(e *Estimator) {
		e.name = name
	}
}

// WithFactory names the registry factory that rebuilds the wrapped object
// when the tree is loaded from a store.
func WithFactory(factory string) EstimatorOption {
	return func(e *Estimator) {
		e.factory = factory
	}
}

// NewEstimator wraps obj. The signature name comes from the object's Name
// method when it has one, its Go type name otherwise.
func NewEstimator(obj any, opts ...EstimatorOption) *Estimator {
	e := &Estimator{base: newBase(objName(obj)), obj: obj}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func objName(obj any) string {
	if named, ok := obj.(ports.Named); ok {
		return named.Name()
	}
	t := reflect.TypeOf(obj)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "Estimator"
	}
	return t.Name()
}

// Object returns the wrapped estimator.
func (e *Estimator) Object() any { return e.obj }

// Inputs returns the declared input names.
func (e *Estimator) Inputs() []string { return e.inputs }

// Factory returns the registry factory name, empty when undeclared.
func (e *Estimator) Factory() string { return e.factory }

func (e *Estimator) Parameters() map[string]any {
	if p, ok := e.obj.(ports.Parameterized); ok {
		return p.Params()
	}
	return nil
}

// producesResult reports whether a predict pass on this wrapper yields a
// Result worth persisting.
func (e *Estimator) producesResult() bool {
	_, isPred := e.obj.(ports.Predictor)
	_, isScore := e.obj.(ports.Scorer)
	return isPred || isScore
}

func (e *Estimator) subset(flow domain.DataFlow) domain.DataFlow {
	if e.inputs == nil {
		return flow
	}
	return flow.Sub(e.inputs)
}

func (e *Estimator) fit(key string, flow domain.DataFlow) error {
	f, ok := e.obj.(ports.Fitter)
	if !ok {
		return nil
	}
	if err := f.Fit(e.subset(flow)); err != nil {
		return fmt.Errorf("fit of %q failed: %w", key, err)
	}
	return nil
}

// transform applies the wrapped transformer, folding its outputs back into
// the flow. Non-transformers pass the flow through.
func (e *Estimator) transform(key string, flow domain.DataFlow) (domain.DataFlow, error) {
	tr, ok := e.obj.(ports.Transformer)
	if !ok {
		return flow, nil
	}
	produced, err := tr.Transform(e.subset(flow))
	if err != nil {
		return nil, fmt.Errorf("transform of %q failed: %w", key, err)
	}
	return foldInto(flow, produced), nil
}

// predictInto predicts and scores one role's flow, recording predictions and
// metrics into res under role-suffixed names.
func (e *Estimator) predictInto(key, role string, flow domain.DataFlow, res domain.Result) (domain.DataFlow, error) {
	out := flow
	if pr, ok := e.obj.(ports.Predictor); ok {
		produced, err := pr.Predict(e.subset(flow))
		if err != nil {
			return nil, fmt.Errorf("predict of %q failed: %w", key, err)
		}
		for name, v := range produced {
			res[name+domain.RoleSuffix(role)] = v
		}
		out = foldInto(flow, produced)
	}
	if sc, ok := e.obj.(ports.Scorer); ok {
		metrics, err := sc.Score(out)
		if err != nil {
			return nil, fmt.Errorf("score of %q failed: %w", key, err)
		}
		for name, v := range metrics {
			res[name+domain.RoleSuffix(role)] = v
		}
	}
	return out, nil
}

func (e *Estimator) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	myResKey := domain.KeyPush(resKey, e.SignatureAgg())
	if flow.IsMerged() {
		return e.runMerged(ctx, r, op, key, myResKey, flow)
	}
	leaf := len(e.children) == 0
	switch op {
	case OpFit:
		if err := e.fit(key, flow); err != nil {
			return nil, err
		}
		out, err := e.transform(key, flow)
		if err != nil {
			return nil, err
		}
		if leaf {
			return out, nil
		}
		return out, fanChildren(ctx, r, e, op, key, myResKey, out)
	case OpTransform:
		out, err := e.transform(key, flow)
		if err != nil {
			return nil, err
		}
		if leaf {
			return out, nil
		}
		return out, fanChildren(ctx, r, e, op, key, myResKey, out)
	case OpPredict, OpFitPredict:
		if op == OpFitPredict {
			if err := e.fit(key, flow); err != nil {
				return nil, err
			}
		}
		if !leaf {
			out, err := e.transform(key, flow)
			if err != nil {
				return nil, err
			}
			return out, fanChildren(ctx, r, e, op, key, myResKey, out)
		}
		if !e.producesResult() {
			// A bare transformer at the end of a chain only feeds the
			// flow onward; it has no predictions to persist.
			return e.transform(key, flow)
		}
		res := domain.NewResult(myResKey)
		out, err := e.predictInto(key, domain.RoleTest, flow, res)
		if err != nil {
			return nil, err
		}
		if err := saveResult(ctx, r, e, key, res); err != nil {
			return nil, err
		}
		return out, nil
	}
	return flow, nil
}

// runMerged handles a combined train/test flow: fit on the train role,
// apply on both roles, re-merge outputs under the role suffixes.
func (e *Estimator) runMerged(ctx context.Context, r *runner, op Op, key, myResKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	train, test := domain.SplitTrainTest(flow)
	leaf := len(e.children) == 0
	if op == OpFit || op == OpFitPredict {
		if err := e.fit(key, train); err != nil {
			return nil, err
		}
	}
	if (op == OpPredict || op == OpFitPredict) && leaf && e.producesResult() {
		res := domain.NewResult(myResKey)
		if _, err := e.predictInto(key, domain.RoleTrain, train, res); err != nil {
			return nil, err
		}
		if _, err := e.predictInto(key, domain.RoleTest, test, res); err != nil {
			return nil, err
		}
		if err := saveResult(ctx, r, e, key, res); err != nil {
			return nil, err
		}
		return flow, nil
	}
	trainOut, err := e.transform(key, train)
	if err != nil {
		return nil, err
	}
	testOut, err := e.transform(key, test)
	if err != nil {
		return nil, err
	}
	merged := domain.MergeTrainTest(trainOut, testOut)
	if leaf {
		return merged, nil
	}
	return merged, fanChildren(ctx, r, e, op, key, myResKey, merged)
}

func (e *Estimator) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	if len(e.children) == 0 {
		return loadResults(ctx, r, e, key)
	}
	return reduceChildren(ctx, r, e, key, nil)
}

// foldInto overlays produced entries onto a clone of the input flow.
func foldInto(flow, produced domain.DataFlow) domain.DataFlow {
	out := flow.Clone()
	for name, v := range produced {
		out[name] = v
	}
	return out
}

// TransformNode wraps a Transformer as a pass-through node: every pass
// applies the transform and feeds the result downstream. A transformer that
// also implements Fitter is trained on fit passes, on the train role of a
// merged flow. It produces no Result of its own.
type TransformNode struct {
	base
	tr      ports.Transformer
	inputs  []string
	factory string
}

// TransformOption configures a TransformNode.
type TransformOption func(*TransformNode)

// WithTransformInputs declares the flow entries passed to the transform.
func WithTransformInputs(names ...string) TransformOption {
	return func(t *TransformNode) {
		t.inputs = names
	}
}

// WithTransformFactory names the registry factory for tree rehydration.
func WithTransformFactory(factory string) TransformOption {
	return func(t *TransformNode) {
		t.factory = factory
	}
}

// NewTransformNode wraps tr.
func NewTransformNode(tr ports.Transformer, opts ...TransformOption) *TransformNode {
	t := &TransformNode{base: newBase(objName(tr)), tr: tr}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transformer returns the wrapped transformer.
func (t *TransformNode) Transformer() ports.Transformer { return t.tr }

// Inputs returns the declared input names.
func (t *TransformNode) Inputs() []string { return t.inputs }

// Factory returns the registry factory name, empty when undeclared.
func (t *TransformNode) Factory() string { return t.factory }

func (t *TransformNode) Parameters() map[string]any {
	if p, ok := t.tr.(ports.Parameterized); ok {
		return p.Params()
	}
	return nil
}

func (t *TransformNode) apply(key string, flow domain.DataFlow) (domain.DataFlow, error) {
	in := flow
	if t.inputs != nil {
		in = flow.Sub(t.inputs)
	}
	produced, err := t.tr.Transform(in)
	if err != nil {
		return nil, fmt.Errorf("transform of %q failed: %w", key, err)
	}
	return foldInto(flow, produced), nil
}

// fit trains a stateful transformer. Transformers without a Fitter, and
// non-fitting passes, are no-ops.
func (t *TransformNode) fit(op Op, key string, flow domain.DataFlow) error {
	if op != OpFit && op != OpFitPredict {
		return nil
	}
	f, ok := t.tr.(ports.Fitter)
	if !ok {
		return nil
	}
	in := flow
	if t.inputs != nil {
		in = flow.Sub(t.inputs)
	}
	if err := f.Fit(in); err != nil {
		return fmt.Errorf("fit of %q failed: %w", key, err)
	}
	return nil
}

func (t *TransformNode) run(ctx context.Context, r *runner, op Op, key, resKey string, flow domain.DataFlow) (domain.DataFlow, error) {
	myResKey := domain.KeyPush(resKey, t.SignatureAgg())
	var out domain.DataFlow
	if flow.IsMerged() {
		train, test := domain.SplitTrainTest(flow)
		if err := t.fit(op, key, train); err != nil {
			return nil, err
		}
		trainOut, err := t.apply(key, train)
		if err != nil {
			return nil, err
		}
		testOut, err := t.apply(key, test)
		if err != nil {
			return nil, err
		}
		out = domain.MergeTrainTest(trainOut, testOut)
	} else {
		if err := t.fit(op, key, flow); err != nil {
			return nil, err
		}
		var err error
		out, err = t.apply(key, flow)
		if err != nil {
			return nil, err
		}
	}
	if len(t.children) == 0 {
		return out, nil
	}
	return out, fanChildren(ctx, r, t, op, key, myResKey, out)
}

func (t *TransformNode) reduceAt(ctx context.Context, r *runner, key string) (*domain.ResultSet, error) {
	if len(t.children) == 0 {
		return domain.NewResultSet(), nil
	}
	return reduceChildren(ctx, r, t, key, nil)
}
