package chain

import (
	"github.com/google/uuid"
)

// Chain is the working set of one drain cycle: the pending message queue,
// the processed history, and a scratch variable space that listeners use to
// coordinate across phases of the same chain. It is owned by a Manager and
// shares its single-threaded discipline; none of its methods are safe for
// concurrent use.
type Chain struct {
	id      uuid.UUID
	manager *Manager
	queue   []*Message
	history []*Message
	vars    map[string]any
}

func newChain(m *Manager) *Chain {
	return &Chain{
		id:      uuid.New(),
		manager: m,
		vars:    make(map[string]any),
	}
}

// ID identifies this chain instance.
func (c *Chain) ID() uuid.UUID { return c.id }

// Manager returns the owning manager, letting handlers and listeners reach
// the submission API from a message.
func (c *Chain) Manager() *Manager { return c.manager }

func (c *Chain) pushFront(msgs ...*Message) {
	for _, m := range msgs {
		m.chain = c
	}
	c.queue = append(msgs, c.queue...)
}

func (c *Chain) pushBack(msgs ...*Message) {
	for _, m := range msgs {
		m.chain = c
	}
	c.queue = append(c.queue, msgs...)
}

func (c *Chain) pop() *Message {
	if len(c.queue) == 0 {
		return nil
	}
	m := c.queue[0]
	c.queue = c.queue[1:]
	return m
}

func (c *Chain) record(m *Message) {
	c.history = append(c.history, m)
}

// Len reports the number of queued, not-yet-dispatched messages.
func (c *Chain) Len() int { return len(c.queue) }

// Clear drops all queued messages without dispatching them. History and
// variables survive.
func (c *Chain) Clear() {
	c.queue = nil
}

// Reset clears the queue, the history, and the variable space.
func (c *Chain) Reset() {
	c.queue = nil
	c.history = nil
	c.vars = make(map[string]any)
}

// ContainsType reports whether any queued message has the given type,
// regardless of phase.
func (c *Chain) ContainsType(t MessageType) bool {
	for _, m := range c.queue {
		if m.msgType == t {
			return true
		}
	}
	return false
}

// FindQueued returns the queued messages matching type and phase, in queue
// order. PhaseNone matches any phase. Listeners use this to attach
// modifiers to messages that have not yet dispatched.
func (c *Chain) FindQueued(t MessageType, phase Phase) []*Message {
	var out []*Message
	for _, m := range c.queue {
		if m.msgType != t {
			continue
		}
		if phase != PhaseNone && m.phase != phase {
			continue
		}
		out = append(out, m)
	}
	return out
}

// History returns the processed messages in completion order.
func (c *Chain) History() []*Message {
	out := make([]*Message, len(c.history))
	copy(out, c.history)
	return out
}

// FindProcessed returns processed messages matching type and phase, in
// completion order. PhaseNone matches any phase.
func (c *Chain) FindProcessed(t MessageType, phase Phase) []*Message {
	var out []*Message
	for _, m := range c.history {
		if m.msgType != t {
			continue
		}
		if phase != PhaseNone && m.phase != phase {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SetVar stores a chain-scoped value. Variables let the phases of one
// logical action pass state to each other without widening the message
// extra vocabulary.
func (c *Chain) SetVar(key string, v any) {
	c.vars[key] = v
}

// Var reads a chain-scoped value.
func (c *Chain) Var(key string) (any, bool) {
	v, ok := c.vars[key]
	return v, ok
}

// PopVar reads and removes a chain-scoped value.
func (c *Chain) PopVar(key string) (any, bool) {
	v, ok := c.vars[key]
	if ok {
		delete(c.vars, key)
	}
	return v, ok
}

// ClearVars drops all chain-scoped values.
func (c *Chain) ClearVars() {
	c.vars = make(map[string]any)
}
