package store

import (
	"fmt"
	"reflect"

	"github.com/neurospin/epac/pkg/domain"
)

// MergeValue implements the merge-on-save discipline shared by every store
// backend. Mappings are deep-merged entry by entry, sequences are appended
// to, and anything else must be equal on both sides: a differing value under
// an identical sub-key is a domain.ErrMergeConflict, never silently dropped.
func MergeValue(old, next any) (any, error) {
	switch o := old.(type) {
	case map[string]any:
		n, ok := toStringMap(next)
		if !ok {
			return nil, conflict("", old, next)
		}
		return mergeMaps(o, n)
	case domain.Result:
		n, ok := toStringMap(next)
		if !ok {
			return nil, conflict("", old, next)
		}
		merged, err := mergeMaps(map[string]any(o), n)
		if err != nil {
			return nil, err
		}
		return domain.Result(merged), nil
	case domain.DataFlow:
		n, ok := toStringMap(next)
		if !ok {
			return nil, conflict("", old, next)
		}
		merged, err := mergeMaps(map[string]any(o), n)
		if err != nil {
			return nil, err
		}
		return domain.DataFlow(merged), nil
	case *domain.ResultSet:
		n, ok := next.(*domain.ResultSet)
		if !ok {
			return nil, conflict("", old, next)
		}
		return mergeResultSets(o, n)
	case []any:
		if n, ok := next.([]any); ok {
			return append(append([]any{}, o...), n...), nil
		}
		return append(append([]any{}, o...), next), nil
	default:
		if reflect.DeepEqual(old, next) {
			return old, nil
		}
		return nil, conflict("", old, next)
	}
}

func mergeMaps(old, next map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(old)+len(next))
	for k, v := range old {
		out[k] = v
	}
	for k, nv := range next {
		ov, exists := out[k]
		if !exists {
			out[k] = nv
			continue
		}
		if isMergeable(ov) {
			merged, err := MergeValue(ov, nv)
			if err != nil {
				return nil, fmt.Errorf("sub-key %q: %w", k, err)
			}
			out[k] = merged
			continue
		}
		if !reflect.DeepEqual(ov, nv) {
			return nil, conflict(k, ov, nv)
		}
	}
	return out, nil
}

func mergeResultSets(old, next *domain.ResultSet) (*domain.ResultSet, error) {
	out := domain.NewResultSet(old.Values()...)
	for _, r := range next.Values() {
		existing, ok := out.Get(r.Key())
		if !ok {
			out.Put(r)
			continue
		}
		merged, err := mergeMaps(map[string]any(existing), map[string]any(r))
		if err != nil {
			return nil, fmt.Errorf("result %q: %w", r.Key(), err)
		}
		out.Put(domain.Result(merged))
	}
	return out, nil
}

func isMergeable(v any) bool {
	switch v.(type) {
	case map[string]any, domain.Result, domain.DataFlow, *domain.ResultSet, []any:
		return true
	}
	return false
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.Result:
		return m, true
	case domain.DataFlow:
		return m, true
	}
	return nil, false
}

func conflict(key string, old, next any) error {
	if key == "" {
		return fmt.Errorf("%w: cannot merge %v into %v", domain.ErrMergeConflict, next, old)
	}
	return fmt.Errorf("%w: sub-key %q holds %v, refusing %v", domain.ErrMergeConflict, key, old, next)
}
