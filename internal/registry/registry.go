// Package registry holds declared secondary indexes, keyed by the data
// namespace they target. It is an explicit, constructed instance rather
// than a package-level singleton: each Cache constructs and owns its own
// *Registry, so multiple independent caches never share index state by
// accident.
package registry

import (
	"sync"

	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/types"
)

// Registry is a process-local catalog of *index.Index values, partitioned
// by target namespace plus a global bucket for indexes with no fixed
// target.
type Registry struct {
	mu      sync.RWMutex
	byNS    map[types.Namespace][]*index.Index
	global  []*index.Index
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byNS: make(map[types.Namespace][]*index.Index)}
}

// Add registers ix. If ix targets a specific namespace it is filed under
// that namespace; otherwise it is filed in the global bucket and returned
// for lookups against every namespace.
func (r *Registry) Add(ix *index.Index, target types.Namespace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == "" {
		r.global = append(r.global, ix)
		return
	}
	r.byNS[target] = append(r.byNS[target], ix)
}

// For returns every index applicable to ns: namespace-specific indexes
// followed by global ones.
func (r *Registry) For(ns types.Namespace) []*index.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*index.Index, 0, len(r.byNS[ns])+len(r.global))
	out = append(out, r.byNS[ns]...)
	out = append(out, r.global...)
	return out
}

// All returns every registered index across every namespace, for tooling
// like reindex/repair that must walk the whole catalog.
func (r *Registry) All() []*index.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*index.Index
	for _, ixs := range r.byNS {
		out = append(out, ixs...)
	}
	out = append(out, r.global...)
	return out
}
