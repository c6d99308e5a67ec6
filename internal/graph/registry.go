package graph

import "sync"

// Registry is the compile-time processing-function lookup table that
// AddNode consults for a DSL descriptor's function name. This replaces
// the original's runtime plugin-resolved dispatch (§9 DESIGN NOTES):
// functions are registered once at process startup, and an unknown name
// at graph-build time is a fatal ProcessingFunctionError rather than a
// tick-time failure.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]ProcessFunc
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]ProcessFunc)}
}

// Register adds or replaces a named processing function.
func (r *Registry) Register(name string, fn ProcessFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered under name, if any.
func (r *Registry) Lookup(name string) (ProcessFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// defaultRegistry backs DefaultRegistry: a process-wide singleton built
// once, per §9's "expose it as an explicit parameter... provide a
// convenience default".
var defaultRegistryOnce sync.Once
var defaultRegistryInstance *Registry

// DefaultRegistry returns the process-wide registry pre-populated with
// the builtin processing functions. Callers that want isolation (tests,
// multiple graphs with distinct function sets) should build their own
// Registry with NewRegistry instead.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistryInstance = NewRegistry()
		registerBuiltins(defaultRegistryInstance)
	})
	return defaultRegistryInstance
}
