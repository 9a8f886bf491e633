package reactive

import "sync"

// Registry holds strong, type-erased references to reactive values so
// they outlive scopes that only capture them weakly (closures handed to
// other goroutines, UI bindings, and the like). It performs no reactive
// work of its own.
type Registry struct {
	mu    sync.Mutex
	items []any
	named map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		named: make(map[string]any),
	}
}

// Register retains v for the lifetime of the registry.
func (r *Registry) Register(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

// RegisterNamed retains v under a name. Re-registering a name replaces
// the previous entry.
func (r *Registry) RegisterNamed(name string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = v
}

// Lookup returns the value registered under name, if any.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.named[name]
	return v, ok
}

// Len reports how many values the registry retains.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items) + len(r.named)
}
