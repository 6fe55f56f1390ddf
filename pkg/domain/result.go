package domain

import (
	"encoding/json"
	"fmt"
)

// Result is the mapping of metric-name to value produced by one node during
// a predict/score pass, tagged by the producing node's result key under the
// reserved ResultKeyField entry.
type Result map[string]any

// NewResult creates a Result tagged with the given key.
func NewResult(key string) Result {
	return Result{ResultKeyField: key}
}

// Key returns the producing key the result is tagged with.
func (r Result) Key() string {
	k, _ := r[ResultKeyField].(string)
	return k
}

// SetKey retags the result.
func (r Result) SetKey(key string) { r[ResultKeyField] = key }

// Payload returns a copy of the result without its key tag.
func (r Result) Payload() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if k == ResultKeyField {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the result.
func (r Result) Clone() Result {
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Update copies every payload entry of other into r, keeping r's key.
func (r Result) Update(other Result) {
	for k, v := range other {
		if k == ResultKeyField {
			continue
		}
		r[k] = v
	}
}

// Float returns the named metric as a float64 when possible.
func (r Result) Float(name string) (float64, bool) {
	return asFloat(r[name])
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// UnmarshalJSON decodes a result, reviving numeric slices as FloatVector and
// blob references as BlobRef so persisted results round-trip through JSON
// stores.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Result, len(raw))
	for k, v := range raw {
		out[k] = Revive(v)
	}
	*r = out
	return nil
}

// Revive maps a generic decoded JSON value back to domain types where the
// shape is unambiguous: slices of numbers become FloatVector, single-entry
// maps holding the reserved blob field become BlobRef.
func Revive(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if h, ok := x[blobRefField].(string); ok && len(x) == 1 {
			return BlobRef{Handle: h}
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Revive(e)
		}
		return out
	case []any:
		if vec, ok := reviveVector(x); ok {
			return vec
		}
		if m, ok := reviveMatrix(x); ok {
			return m
		}
		out := make([]any, len(x))
		for j, raw := range x {
			out[j] = Revive(raw)
		}
		return out
	default:
		return v
	}
}

func reviveVector(x []any) (FloatVector, bool) {
	vec := make(FloatVector, len(x))
	for i, e := range x {
		f, ok := asFloat(e)
		if !ok {
			return nil, false
		}
		vec[i] = f
	}
	return vec, true
}

func reviveMatrix(x []any) (FloatMatrix, bool) {
	m := make(FloatMatrix, len(x))
	for i, e := range x {
		row, ok := e.([]any)
		if !ok {
			return nil, false
		}
		vec, ok := reviveVector(row)
		if !ok {
			return nil, false
		}
		m[i] = vec
	}
	return m, true
}

// ResultSet is the key-indexed collection of Results assembled during the
// bottom-up reduction pass. Insertion order is preserved so reductions are
// deterministic.
type ResultSet struct {
	order   []string
	results map[string]Result
}

// NewResultSet creates a ResultSet holding the given results, in order.
func NewResultSet(results ...Result) *ResultSet {
	rs := &ResultSet{results: make(map[string]Result)}
	for _, r := range results {
		rs.Put(r)
	}
	return rs
}

// Put inserts or replaces the result stored under its key.
func (rs *ResultSet) Put(r Result) {
	key := r.Key()
	if _, ok := rs.results[key]; !ok {
		rs.order = append(rs.order, key)
	}
	rs.results[key] = r
}

// Get returns the result stored under key.
func (rs *ResultSet) Get(key string) (Result, bool) {
	r, ok := rs.results[key]
	return r, ok
}

// Keys returns the result keys in insertion order.
func (rs *ResultSet) Keys() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Values returns the results in insertion order.
func (rs *ResultSet) Values() []Result {
	out := make([]Result, 0, len(rs.order))
	for _, k := range rs.order {
		out = append(out, rs.results[k])
	}
	return out
}

// Len returns the number of results held.
func (rs *ResultSet) Len() int { return len(rs.order) }

// Merge copies every result of other into rs, replacing same-key entries.
func (rs *ResultSet) Merge(other *ResultSet) {
	if other == nil {
		return
	}
	for _, r := range other.Values() {
		rs.Put(r)
	}
}

// MarshalJSON encodes the set as an ordered array of results.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Values())
}

// UnmarshalJSON decodes an ordered array of results.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return err
	}
	*rs = *NewResultSet(results...)
	return nil
}

// String renders the set for logs and CLI output.
func (rs *ResultSet) String() string {
	if rs == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Sprintf("resultset<%d>", rs.Len())
	}
	return string(data)
}
