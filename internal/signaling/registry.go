package signaling

import "sync"

// Sender delivers envelopes to one connected client. Send reports whether
// the envelope was accepted for delivery; it must never block.
type Sender interface {
	Send(env Envelope) bool
}

// Registry maps live client identities to their transports. Exactly one
// entry exists per live connection; the entry is removed synchronously when
// the transport closes.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Sender),
	}
}

func (r *Registry) Register(id string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = sender
}

// Lookup returns the transport for id. Absence is a normal outcome: the
// target disconnected or the caller holds a stale identity.
func (r *Registry) Lookup(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.clients[id]
	return sender, ok
}

// Remove is idempotent; removing an absent identity is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
