package cache

import (
	"sort"
	"sync"
)

// Store is the type-erased view of a read-through cache, used by callers that
// operate on stores by name (the admin surface, teardown).
type Store interface {
	Name() string
	Invalidate()
	Stats() Stats
	Close()
}

// Registry maps store names to their cache instances
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty cache registry
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register adds a store to the registry, replacing any previous entry with
// the same name
func (r *Registry) Register(s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.Name()] = s
}

// Lookup returns the store with the given name
func (r *Registry) Lookup(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Names returns the registered store names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatsByName returns the counters of every registered store
func (r *Registry) StatsByName() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(map[string]Stats, len(r.stores))
	for name, s := range r.stores {
		stats[name] = s.Stats()
	}
	return stats
}

// CloseAll tears down every registered store
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		s.Close()
	}
	r.stores = make(map[string]Store)
}
