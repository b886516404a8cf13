package chain

import (
	"fmt"
	"sync"
)

// HandlerFunc processes one message at one phase. A returned error is
// recorded as a non-fatal dispatch failure.
type HandlerFunc func(*Message) error

type handlerKey struct {
	msgType MessageType
	phase   Phase
}

// HandlerRegistry maps (message type, phase) keys to handlers. A registry
// may hold a reference to a base registry; lookups that miss locally fall
// back through the delegation chain, which lets a derived registry override
// individual entries without copying the base.
type HandlerRegistry struct {
	mu      sync.RWMutex
	base    *HandlerRegistry
	entries map[handlerKey]HandlerFunc
}

// NewHandlerRegistry creates a registry. base may be nil for a root
// registry; otherwise lookups delegate to it on miss.
func NewHandlerRegistry(base *HandlerRegistry) *HandlerRegistry {
	return &HandlerRegistry{
		base:    base,
		entries: make(map[handlerKey]HandlerFunc),
	}
}

// Base returns the registry this one delegates to, or nil.
func (r *HandlerRegistry) Base() *HandlerRegistry { return r.base }

// Register binds a handler to the (type, phase) key. It fails with a
// DuplicateHandlerError when the key already resolves anywhere in the
// delegation chain; use Replace to override deliberately. Only PRE, MAIN
// and POST are registrable: dispatch never sees any other phase.
func (r *HandlerRegistry) Register(msgType MessageType, phase Phase, h HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("nil handler for %s/%s", msgType, phase)
	}
	if !phase.dispatchable() {
		return fmt.Errorf("handler phase must be PRE, MAIN or POST, got %s", phase)
	}
	if _, ok := r.Lookup(msgType, phase); ok {
		return &DuplicateHandlerError{Type: msgType, Phase: phase}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[handlerKey{msgType, phase}] = h
	return nil
}

// Replace unconditionally binds a handler to the key in this registry,
// shadowing any base entry. This is the override path for derived
// registries.
func (r *HandlerRegistry) Replace(msgType MessageType, phase Phase, h HandlerFunc) {
	if h == nil || !phase.dispatchable() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[handlerKey{msgType, phase}] = h
}

// UnregisterType removes this registry's local entries for all phases of
// the type. Base entries are untouched and become visible again.
func (r *HandlerRegistry) UnregisterType(msgType MessageType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, phase := range []Phase{PhasePre, PhaseMain, PhasePost} {
		delete(r.entries, handlerKey{msgType, phase})
	}
}

// Lookup resolves the handler for the key, falling back through the
// delegation chain on a local miss.
func (r *HandlerRegistry) Lookup(msgType MessageType, phase Phase) (HandlerFunc, bool) {
	r.mu.RLock()
	h, ok := r.entries[handlerKey{msgType, phase}]
	r.mu.RUnlock()
	if ok {
		return h, true
	}
	if r.base != nil {
		return r.base.Lookup(msgType, phase)
	}
	return nil, false
}

// HasHandler reports whether the key resolves in the delegation chain.
func (r *HandlerRegistry) HasHandler(msgType MessageType, phase Phase) bool {
	_, ok := r.Lookup(msgType, phase)
	return ok
}

// Handles is the declarative registration form: it returns a function that
// registers its argument for the key and hands it back, so handler sets can
// be assembled at construction time. Duplicate keys panic, treating a
// conflicting registration as a programming error.
//
//	reg := chain.NewHandlerRegistry(nil)
//	handleDamage := reg.Handles("DAMAGE", chain.PhaseMain)(func(m *chain.Message) error { ... })
func (r *HandlerRegistry) Handles(msgType MessageType, phase Phase) func(HandlerFunc) HandlerFunc {
	return func(h HandlerFunc) HandlerFunc {
		if err := r.Register(msgType, phase, h); err != nil {
			panic(err)
		}
		return h
	}
}
