package chain

import (
	"sync"

	"github.com/google/uuid"
)

// Listener reacts to messages after their phase handler has run. Listeners
// never modify the message that triggered them directly; they respond by
// submitting new messages or by attaching modifiers to queued ones.
type Listener interface {
	// ListenerID identifies this listener instance for loop suppression.
	ListenerID() uuid.UUID
	// Effect is invoked once per (message instance, phase unit). It may
	// submit follow-up messages through the manager.
	Effect(msg *Message) error
}

// BaseListener provides the identity half of the Listener interface.
// Concrete listeners embed it and supply Effect.
type BaseListener struct {
	id  uuid.UUID
	key string
}

// NewBaseListener creates the embeddable identity with a human-readable
// key used in logs and errors.
func NewBaseListener(key string) BaseListener {
	return BaseListener{id: uuid.New(), key: key}
}

func (b BaseListener) ListenerID() uuid.UUID { return b.id }

// Key returns the human-readable label given at construction.
func (b BaseListener) Key() string { return b.key }

// ListenerRegistry holds listeners in registration order. Iteration during
// dispatch works on a snapshot, so listeners may add or remove listeners
// from inside Effect without affecting the pass in flight.
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

// Add appends the listener. Adding the same instance twice is a no-op.
func (r *ListenerRegistry) Add(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.listeners {
		if existing.ListenerID() == l.ListenerID() {
			return
		}
	}
	r.listeners = append(r.listeners, l)
}

// Remove drops the listener by identity. Unknown listeners are ignored.
func (r *ListenerRegistry) Remove(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing.ListenerID() == l.ListenerID() {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current listener list in registration
// order.
func (r *ListenerRegistry) Snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// Len reports the number of registered listeners.
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Clear removes all listeners.
func (r *ListenerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = nil
}
