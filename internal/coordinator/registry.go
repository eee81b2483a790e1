package coordinator

import (
	"log/slog"
	"sync"
)

// Registry tracks the battles currently in progress. Battles add themselves
// on Start and remove themselves on termination.
type Registry struct {
	mu      sync.Mutex
	battles []*Battle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a battle.
func (r *Registry) Add(b *Battle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.battles = append(r.battles, b)
}

// Remove unregisters a battle. Removing a battle that is not registered is
// logged and otherwise a no-op.
func (r *Registry) Remove(b *Battle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.battles {
		if have == b {
			r.battles = append(r.battles[:i], r.battles[i+1:]...)
			return
		}
	}
	slog.Warn("removing battle that is not registered", "bid", b.bidLocked())
}

// Get returns the battle with the given engine battle id.
func (r *Registry) Get(bid int) (*Battle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.battles {
		if b.bidLocked() == bid {
			return b, true
		}
	}
	return nil, false
}

// List returns snapshots of all registered battles.
func (r *Registry) List() []Status {
	r.mu.Lock()
	battles := make([]*Battle, len(r.battles))
	copy(battles, r.battles)
	r.mu.Unlock()

	out := make([]Status, 0, len(battles))
	for _, b := range battles {
		out = append(out, b.Status())
	}
	return out
}

// Len returns the number of registered battles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.battles)
}
