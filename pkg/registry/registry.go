// Package registry maps estimator factory names to constructors, so
// persisted workflow trees can rebuild their wrapped estimators when loaded
// in another process.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an estimator from its persisted parameters.
type Factory func(params map[string]any) (any, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register binds a factory name. Registering an already-bound name replaces
// the previous factory.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New builds an estimator from a registered factory.
func New(name string, params map[string]any) (any, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no estimator factory registered as %q", name)
	}
	obj, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("factory %q failed: %w", name, err)
	}
	return obj, nil
}

// Names lists the registered factory names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
