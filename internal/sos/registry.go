package sos

import "sync"

// Registry hands out one coordinator per participant. An episode
// belongs to whoever triggered it, so each caller gets an isolated
// state machine.
type Registry struct {
	mu      sync.Mutex
	coords  map[string]*Coordinator
	factory func(participantID string) *Coordinator
}

func NewRegistry(factory func(participantID string) *Coordinator) *Registry {
	return &Registry{
		coords:  make(map[string]*Coordinator),
		factory: factory,
	}
}

// For returns the participant's coordinator, creating it on first use.
func (r *Registry) For(participantID string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coords[participantID]; ok {
		return c
	}
	c := r.factory(participantID)
	r.coords[participantID] = c
	return c
}
