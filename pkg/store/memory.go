package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/neurospin/epac/pkg/domain"
)

// MemStore is the in-memory ports.Store. It holds objects directly, so no
// blob segregation is needed; it backs scratch state such as the search
// store of a re-planning node, and single-process executions.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]any)}
}

// Save persists obj under key, merging per the store discipline when merge
// is set.
func (s *MemStore) Save(ctx context.Context, key string, obj any, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[key]
	if !merge || !ok {
		s.entries[key] = obj
		return nil
	}
	merged, err := MergeValue(existing, obj)
	if err != nil {
		return err
	}
	s.entries[key] = merged
	return nil
}

// Load returns the object at key, or a prefix aggregate when key only
// prefixes other entries.
func (s *MemStore) Load(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if obj, ok := s.entries[key]; ok {
		return obj, nil
	}
	agg := make(map[string]any)
	prefix := key + domain.KeySep
	if key == "" {
		prefix = ""
	}
	for k, v := range s.entries {
		if strings.HasPrefix(k, prefix) {
			agg[strings.TrimPrefix(k, prefix)] = v
		}
	}
	if len(agg) == 0 {
		return nil, domain.ErrKeyNotFound
	}
	return agg, nil
}

// Keys lists the stored keys under prefix, sorted.
func (s *MemStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.entries {
		if underPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Contents returns a copy of the stored entries. Tree persistence uses it to
// dump a node's attached store next to the tree definition.
func (s *MemStore) Contents() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// underPrefix reports whether key equals prefix or lives under it,
// segment-wise.
func underPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+domain.KeySep)
}
