package queue

import "sync"

// Registry maps guild IDs to their queues. Entries are created on first
// access and never removed; an emptied queue stays registered.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		queues: make(map[string]*Queue),
	}
}

// GetOrCreate returns the queue for guildID, creating it on first use.
func (r *Registry) GetOrCreate(guildID string) *Queue {
	r.mu.RLock()
	q, ok := r.queues[guildID]
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have created it between the two locks.
	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q = New()
	r.queues[guildID] = q
	return q
}

// Len returns the number of guilds that have a queue.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}
