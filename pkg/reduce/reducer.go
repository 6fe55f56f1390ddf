package reduce

import (
	"sort"

	"github.com/neurospin/epac/pkg/domain"
)

// Reducer folds the Results that collided on one result key at one tree
// level into a single Result. group preserves child order: for a
// cross-validation level it is the per-fold Results in fold order, for a
// permutation level the index-0 entry is the unpermuted reference run.
// Reducers are stateless across calls besides their configuration.
type Reducer interface {
	Reduce(key string, group []domain.Result) (domain.Result, error)
}

// Func adapts a plain function to the Reducer interface.
type Func func(key string, group []domain.Result) (domain.Result, error)

func (f Func) Reduce(key string, group []domain.Result) (domain.Result, error) {
	return f(key, group)
}

// metricNames returns the union of payload metric names across a group,
// sorted per result so the reduction output is deterministic.
func metricNames(group []domain.Result) []string {
	var order []string
	seen := make(map[string]bool)
	for _, res := range group {
		names := make([]string, 0, len(res))
		for name := range res {
			if name == domain.ResultKeyField || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		sort.Strings(names)
		order = append(order, names...)
	}
	return order
}
