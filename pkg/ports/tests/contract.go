package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/ports"
)

// RunStoreContract is a reusable test suite that verifies an adapter
// complies with ports.Store: exact save/load, monotonic merge semantics,
// prefix aggregation and blob segregation of large results.
func RunStoreContract(t *testing.T, store ports.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "contract/missing")
		if !errors.Is(err, domain.ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Save_Load_Overwrite", func(t *testing.T) {
		if err := store.Save(ctx, "contract/a", map[string]any{"x": 1.0}, false); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := store.Save(ctx, "contract/a", map[string]any{"x": 2.0}, false); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		obj, err := store.Load(ctx, "contract/a")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		m, ok := obj.(map[string]any)
		if !ok {
			t.Fatalf("expected map, got %T", obj)
		}
		if got, _ := m["x"].(float64); got != 2.0 {
			t.Errorf("expected x=2, got %v", m["x"])
		}
	})

	t.Run("Merge_DisjointKeys", func(t *testing.T) {
		if err := store.Save(ctx, "contract/m", map[string]any{"a": 1.0}, true); err != nil {
			t.Fatalf("first merge save failed: %v", err)
		}
		if err := store.Save(ctx, "contract/m", map[string]any{"b": 2.0}, true); err != nil {
			t.Fatalf("second merge save failed: %v", err)
		}
		obj, err := store.Load(ctx, "contract/m")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		m := obj.(map[string]any)
		if got, _ := m["a"].(float64); got != 1.0 {
			t.Errorf("expected a=1, got %v", m["a"])
		}
		if got, _ := m["b"].(float64); got != 2.0 {
			t.Errorf("expected b=2, got %v", m["b"])
		}
	})

	t.Run("Merge_Conflict", func(t *testing.T) {
		if err := store.Save(ctx, "contract/c", map[string]any{"a": 1.0}, true); err != nil {
			t.Fatalf("first merge save failed: %v", err)
		}
		err := store.Save(ctx, "contract/c", map[string]any{"a": 2.0}, true)
		if !errors.Is(err, domain.ErrMergeConflict) {
			t.Fatalf("expected ErrMergeConflict, got %v", err)
		}
	})

	t.Run("Merge_SameValueIsIdempotent", func(t *testing.T) {
		if err := store.Save(ctx, "contract/idem", map[string]any{"a": 1.0}, true); err != nil {
			t.Fatalf("first merge save failed: %v", err)
		}
		if err := store.Save(ctx, "contract/idem", map[string]any{"a": 1.0}, true); err != nil {
			t.Fatalf("re-saving the same value must not conflict: %v", err)
		}
	})

	t.Run("Prefix_Aggregation", func(t *testing.T) {
		if err := store.Save(ctx, "contract/tree/left", map[string]any{"v": 1.0}, false); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := store.Save(ctx, "contract/tree/right", map[string]any{"v": 2.0}, false); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		obj, err := store.Load(ctx, "contract/tree")
		if err != nil {
			t.Fatalf("prefix load failed: %v", err)
		}
		agg, ok := obj.(map[string]any)
		if !ok {
			t.Fatalf("expected aggregate map, got %T", obj)
		}
		if _, ok := agg["left"]; !ok {
			t.Errorf("aggregate missing relative key left: %v", agg)
		}
		if _, ok := agg["right"]; !ok {
			t.Errorf("aggregate missing relative key right: %v", agg)
		}
	})

	t.Run("Keys_Listing", func(t *testing.T) {
		keys, err := store.Keys(ctx, "contract/tree")
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if len(keys) != 2 {
			t.Errorf("expected 2 keys under contract/tree, got %v", keys)
		}
	})

	t.Run("Result_BlobRoundTrip", func(t *testing.T) {
		res := domain.NewResult("Blobby")
		res["score/test"] = 0.75
		pred := make(domain.FloatVector, 512)
		for i := range pred {
			pred[i] = float64(i)
		}
		res["pred/test"] = pred

		if err := store.Save(ctx, "contract/blob", res, false); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		obj, err := store.Load(ctx, "contract/blob")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		loaded, ok := obj.(domain.Result)
		if !ok {
			t.Fatalf("expected Result, got %T", obj)
		}
		if got, _ := loaded.Float("score/test"); got != 0.75 {
			t.Errorf("expected score 0.75, got %v", loaded["score/test"])
		}
		arr, ok := loaded["pred/test"].(domain.Array)
		if !ok {
			t.Fatalf("expected restored Array, got %T", loaded["pred/test"])
		}
		if arr.Len() != 512 {
			t.Errorf("expected 512 rows, got %d", arr.Len())
		}
		vec, ok := arr.(domain.FloatVector)
		if !ok {
			t.Fatalf("expected FloatVector, got %T", arr)
		}
		if vec[511] != 511 {
			t.Errorf("expected last value 511, got %v", vec[511])
		}
	})
}
