package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KindSeparator splits a derived kind such as "python+run" from the
// executable kind it belongs to.
const KindSeparator = "+"

// Registry maps executable kinds to runtimes.
type Registry struct {
	mu       sync.RWMutex
	runtimes map[string]Runtime
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[string]Runtime)}
}

// Register binds kind to rt. Registering a kind twice is an error.
func (r *Registry) Register(kind string, rt Runtime) error {
	if kind == "" {
		return fmt.Errorf("runtime kind is required")
	}
	if rt == nil {
		return fmt.Errorf("runtime for kind %s is nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runtimes[kind]; exists {
		return fmt.Errorf("runtime for kind %s is already registered", kind)
	}
	r.runtimes[kind] = rt
	return nil
}

// Lookup returns the runtime for kind. A derived kind like "python+run" or
// "python+job" falls back to its executable kind "python".
func (r *Registry) Lookup(kind string) (Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rt, ok := r.runtimes[kind]; ok {
		return rt, true
	}
	if base, _, found := strings.Cut(kind, KindSeparator); found {
		rt, ok := r.runtimes[base]
		return rt, ok
	}
	return nil, false
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.runtimes))
	for k := range r.runtimes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// RunKind returns the run kind derived from an executable kind.
func RunKind(executableKind string) string {
	return executableKind + KindSeparator + "run"
}

// ExecutableKind strips the derived suffix from a run or task kind.
func ExecutableKind(kind string) string {
	base, _, _ := strings.Cut(kind, KindSeparator)
	return base
}
