package recognition

import "sync"

// Registry holds the set of currently enabled adapters keyed by service id,
// preserving registration order. Registry mutation is expected from a single
// control thread; reads may happen from concurrent recognition calls.
type Registry struct {
	mu      sync.RWMutex
	order   []int
	entries map[int]Recognizer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Recognizer)}
}

// Enable registers an adapter under its service id. Re-enabling an id
// replaces the adapter in place, keeping its original position.
func (r *Registry) Enable(rec Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := rec.ServiceID()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = rec
}

// Disable removes the adapter with the given id. Disabling an unknown id is
// a silent no-op so callers can clean up unconditionally.
func (r *Registry) Disable(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id int) (Recognizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entries[id]
	return rec, ok
}

// All returns the enabled adapters in registration order.
func (r *Registry) All() []Recognizer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Recognizer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// IDs returns the enabled service ids in registration order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of enabled adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
