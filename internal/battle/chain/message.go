package chain

import (
	"fmt"

	"github.com/google/uuid"
)

// Phase indicates where a message sits in its processing lifecycle.
// Unphased (PhaseNone) messages are split into PRE/MAIN/POST siblings
// before they enter the chain; a message's phase never regresses.
type Phase int

const (
	// PhasePre runs before the core resolution of an event.
	PhasePre Phase = iota
	// PhaseMain performs the core resolution.
	PhaseMain
	// PhasePost runs after the core resolution.
	PhasePost
	// PhaseNone marks a freshly built message that has not been split yet.
	PhaseNone
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "PRE"
	case PhaseMain:
		return "MAIN"
	case PhasePost:
		return "POST"
	case PhaseNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Next returns the phase that follows this one. The second return value is
// false for PhasePost (end of the lifecycle) and PhaseNone (not phased yet).
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhasePre:
		return PhaseMain, true
	case PhaseMain:
		return PhasePost, true
	default:
		return PhaseNone, false
	}
}

// dispatchable reports whether units of this phase can appear in the
// queue. Handler keys are restricted to these phases.
func (p Phase) dispatchable() bool {
	return p == PhasePre || p == PhaseMain || p == PhasePost
}

// UnitState tracks a message-phase unit through dispatch.
type UnitState int

const (
	// UnitQueued means the unit is waiting in the chain's queue.
	UnitQueued UnitState = iota
	// UnitDispatchingHandler means the matching handler is being invoked.
	UnitDispatchingHandler
	// UnitDispatchingListeners means listeners are being notified.
	UnitDispatchingListeners
	// UnitDone is terminal; the unit has left the queue.
	UnitDone
)

// String returns the string representation of the unit state.
func (s UnitState) String() string {
	switch s {
	case UnitQueued:
		return "QUEUED"
	case UnitDispatchingHandler:
		return "DISPATCHING_HANDLER"
	case UnitDispatchingListeners:
		return "DISPATCHING_LISTENERS"
	case UnitDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// MessageType tags the kind of event a message carries (e.g. "DAMAGE").
// The chain treats types opaquely; content packages define the vocabulary.
type MessageType string

// Entity identifies an acting or targeted participant of a message.
// Game content (characters, summons, hazards) implements this.
type Entity interface {
	EntityID() string
}

// Message is a single typed, phased unit of game logic flowing through the
// chain. Its numeric value, sender and receiver are read through accessors
// that fold the attached modifier pipeline over the base state; handlers and
// listeners never assign them directly.
type Message struct {
	id        uuid.UUID
	msgType   MessageType
	phase     Phase
	state     UnitState
	baseValue int
	sender    Entity
	receiver  Entity
	extra     map[ExtraKey]any

	pipeline []Modifier
	modIndex map[string]int

	// listeners that already acted on this exact unit at this phase
	responded map[uuid.UUID]struct{}

	chain *Chain   // owning chain; lookup only
	prev  *Message // earlier phase sibling whose resolved state we adopt

	memoValid    bool
	memoValue    int
	memoSender   Entity
	memoReceiver Entity
}

// NewMessage builds a standalone, unphased message. It carries no modifiers
// and no responded listeners; it joins a chain when submitted to a manager.
func NewMessage(msgType MessageType, value int, sender, receiver Entity) *Message {
	return &Message{
		id:        uuid.New(),
		msgType:   msgType,
		phase:     PhaseNone,
		state:     UnitQueued,
		baseValue: value,
		sender:    sender,
		receiver:  receiver,
		extra:     make(map[ExtraKey]any),
		modIndex:  make(map[string]int),
		responded: make(map[uuid.UUID]struct{}),
	}
}

// Derive builds a new independent message (e.g. a reflected damage event)
// from inside a handler, listener or modifier. Only the given fields carry
// over; the parent's pipeline and responded set never do. The chain
// reference is shared so the new message can reach the manager's submission
// entry points before it is enqueued itself.
func (m *Message) Derive(msgType MessageType, value int, sender, receiver Entity) *Message {
	d := NewMessage(msgType, value, sender, receiver)
	d.chain = m.chain
	return d
}

// ID returns the message's stable unique identifier.
func (m *Message) ID() uuid.UUID { return m.id }

// Type returns the message's type tag.
func (m *Message) Type() MessageType { return m.msgType }

// Phase returns the message's current phase.
func (m *Message) Phase() Phase { return m.phase }

// State returns the unit's dispatch state.
func (m *Message) State() UnitState { return m.state }

// BaseValue returns the unmodified numeric payload.
func (m *Message) BaseValue() int { return m.baseValue }

// Chain returns the owning chain, or nil for a message that has not been
// submitted yet.
func (m *Message) Chain() *Chain { return m.chain }

// Value returns the numeric payload after folding the modifier pipeline
// left-to-right over the base value. The result is memoized until the next
// Modify call.
func (m *Message) Value() int {
	m.resolve()
	return m.memoValue
}

// Sender returns the acting entity after pipeline folding.
func (m *Message) Sender() Entity {
	m.resolve()
	return m.memoSender
}

// Receiver returns the target entity after pipeline folding.
func (m *Message) Receiver() Entity {
	m.resolve()
	return m.memoReceiver
}

// resolve folds the pipeline once and caches the result. Custom modifiers
// run here, so their side effects (spawning messages through the manager)
// happen at most once per memoization window.
func (m *Message) resolve() {
	if m.memoValid {
		return
	}
	// mark valid up front so a modifier reading Value() mid-fold sees the
	// base state instead of recursing
	m.memoValid = true
	m.memoValue = m.baseValue
	m.memoSender = m.sender
	m.memoReceiver = m.receiver

	value, sender, receiver := m.baseValue, m.sender, m.receiver
	for i := range m.pipeline {
		mod := &m.pipeline[i]
		switch mod.Kind {
		case ModifierSetValue:
			if mod.Value != nil {
				value = mod.Value(value, m)
			}
		case ModifierSetSender:
			sender = mod.Entity
		case ModifierSetReceiver:
			receiver = mod.Entity
		case ModifierCustom:
			if mod.Custom == nil {
				continue
			}
			if _, result, accepted := mod.Custom(m, value); accepted {
				value = result
			}
		}
		m.memoValue, m.memoSender, m.memoReceiver = value, sender, receiver
	}
}

// Modify attaches a modifier to the message's pipeline, or replaces the
// existing modifier of the same name in place. The value memo is
// invalidated either way.
func (m *Message) Modify(mod Modifier) {
	if idx, ok := m.modIndex[mod.Name]; ok {
		m.pipeline[idx] = mod
	} else {
		m.modIndex[mod.Name] = len(m.pipeline)
		m.pipeline = append(m.pipeline, mod)
	}
	m.memoValid = false
}

// RemoveModifier deletes the named modifier from the pipeline.
// Returns false if no modifier of that name is attached.
func (m *Message) RemoveModifier(name string) bool {
	idx, ok := m.modIndex[name]
	if !ok {
		return false
	}
	m.pipeline = append(m.pipeline[:idx], m.pipeline[idx+1:]...)
	delete(m.modIndex, name)
	for n, i := range m.modIndex {
		if i > idx {
			m.modIndex[n] = i - 1
		}
	}
	m.memoValid = false
	return true
}

// ClearModifiers drops the whole pipeline.
func (m *Message) ClearModifiers() {
	m.pipeline = nil
	m.modIndex = make(map[string]int)
	m.memoValid = false
}

// Modifiers returns a copy of the pipeline in application order.
func (m *Message) Modifiers() []Modifier {
	out := make([]Modifier, len(m.pipeline))
	copy(out, m.pipeline)
	return out
}

// SetExtra stores a value under a declared metadata key. The write fails
// with UnknownExtraKeyError for undeclared keys and ExtraTypeMismatchError
// when the value does not match the key's declared type; a failed write
// leaves the metadata untouched.
func (m *Message) SetExtra(key ExtraKey, value any) error {
	if !key.known() {
		return &UnknownExtraKeyError{Key: key.Name}
	}
	if err := key.check(value); err != nil {
		return err
	}
	m.extra[key] = value
	return nil
}

// Extra returns the raw value stored under the key.
func (m *Message) Extra(key ExtraKey) (any, bool) {
	v, ok := m.extra[key]
	return v, ok
}

// IntExtra returns the int stored under the key, or 0 when absent.
func (m *Message) IntExtra(key ExtraKey) int {
	if v, ok := m.extra[key].(int); ok {
		return v
	}
	return 0
}

// BoolExtra returns the bool stored under the key, or false when absent.
func (m *Message) BoolExtra(key ExtraKey) bool {
	if v, ok := m.extra[key].(bool); ok {
		return v
	}
	return false
}

// StringExtra returns the string stored under the key, or "" when absent.
func (m *Message) StringExtra(key ExtraKey) string {
	if v, ok := m.extra[key].(string); ok {
		return v
	}
	return ""
}

// RemoveExtra deletes the key from the metadata.
func (m *Message) RemoveExtra(key ExtraKey) {
	delete(m.extra, key)
}

// Split expands an unphased message into its PRE, MAIN and POST siblings.
// The siblings share the base value, sender, receiver and a copy of the
// extras, but each owns an independent modifier pipeline and responded set.
// Each later sibling is linked to the previous one so it adopts that
// sibling's resolved state when its own dispatch starts.
func (m *Message) Split() (pre, main, post *Message, err error) {
	if m.phase != PhaseNone {
		return nil, nil, nil, fmt.Errorf("message %s already split (phase %s)", m.id, m.phase)
	}
	pre = m.sibling(PhasePre, nil)
	main = m.sibling(PhaseMain, pre)
	post = m.sibling(PhasePost, main)
	// modifiers attached before submission belong to the earliest phase
	pre.pipeline = append([]Modifier(nil), m.pipeline...)
	for name, idx := range m.modIndex {
		pre.modIndex[name] = idx
	}
	return pre, main, post, nil
}

func (m *Message) sibling(phase Phase, prev *Message) *Message {
	s := NewMessage(m.msgType, m.baseValue, m.sender, m.receiver)
	s.phase = phase
	s.chain = m.chain
	s.prev = prev
	for k, v := range m.extra {
		s.extra[k] = v
	}
	return s
}

// adoptPrev pulls the resolved value, sender, receiver and extras of the
// preceding phase sibling into this unit's base state. Called once when the
// unit starts dispatching, so MAIN observes everything PRE settled on.
func (m *Message) adoptPrev() {
	if m.prev == nil {
		return
	}
	p := m.prev
	m.baseValue = p.Value()
	m.sender = p.Sender()
	m.receiver = p.Receiver()
	m.extra = make(map[ExtraKey]any, len(p.extra))
	for k, v := range p.extra {
		m.extra[k] = v
	}
	m.memoValid = false
}

// HasResponded reports whether the listener already acted on this unit.
func (m *Message) HasResponded(id uuid.UUID) bool {
	_, ok := m.responded[id]
	return ok
}

func (m *Message) markResponded(id uuid.UUID) {
	m.responded[id] = struct{}{}
}

// String returns a short human-readable description for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s[%s|%s]", m.msgType, m.phase, m.id)
}
