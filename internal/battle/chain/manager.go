package chain

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxQueueLen bounds the pending queue during a drain. A chain that
// grows past the bound (mutually reflecting listeners, for example) is
// aborted instead of spinning forever.
const DefaultMaxQueueLen = 4000

// Manager owns the message chain of one battle: the handler registry, the
// listener registry, the queue discipline, and the synchronous drain loop.
// It is strictly single-threaded; all submissions and the drain must happen
// on the same goroutine, and re-entrant drains are rejected.
type Manager struct {
	id          uuid.UUID
	logger      *zap.Logger
	handlers    *HandlerRegistry
	listeners   *ListenerRegistry
	chain       *Chain
	maxQueueLen int
	draining    bool
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithMaxQueueLen overrides the queue length bound enforced during Drain.
// Zero or negative disables the bound.
func WithMaxQueueLen(n int) Option {
	return func(m *Manager) { m.maxQueueLen = n }
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager whose handler registry delegates to base.
// base may be nil; pass the shared baseline registry to inherit the stock
// handlers while keeping per-battle overrides local.
func NewManager(base *HandlerRegistry, opts ...Option) *Manager {
	m := &Manager{
		id:          uuid.New(),
		logger:      zap.NewNop(),
		handlers:    NewHandlerRegistry(base),
		listeners:   NewListenerRegistry(),
		maxQueueLen: DefaultMaxQueueLen,
	}
	m.chain = newChain(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID identifies this manager instance.
func (m *Manager) ID() uuid.UUID { return m.id }

// Handlers returns the manager's own registry. Registrations here shadow
// the base registry for this manager only.
func (m *Manager) Handlers() *HandlerRegistry { return m.handlers }

// Chain returns the current working chain.
func (m *Manager) Chain() *Chain { return m.chain }

// Register adds a listener to dispatch notifications.
func (m *Manager) Register(l Listener) {
	m.listeners.Add(l)
}

// Unregister removes a listener. Messages already queued keep any
// suppression marks for it.
func (m *Manager) Unregister(l Listener) {
	m.listeners.Remove(l)
}

// Listeners returns the listener registry.
func (m *Manager) Listeners() *ListenerRegistry { return m.listeners }

// Len reports the number of queued, not-yet-dispatched messages.
func (m *Manager) Len() int { return m.chain.Len() }

// Reset clears the queue, history, and chain variables, abandoning any
// pending work. It must not be called from inside a drain.
func (m *Manager) Reset() error {
	if m.draining {
		return ErrDraining
	}
	m.chain.Reset()
	return nil
}

// AcceptMsg submits a message for immediate processing: its phase units go
// to the head of the queue, ahead of everything already pending, so the
// message fully resolves before older work resumes. An unsplit message is
// split first. An already-phased message is placed at the head as is.
func (m *Manager) AcceptMsg(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	if msg.phase != PhaseNone {
		m.chain.pushFront(msg)
		return nil
	}
	pre, main, post, err := msg.Split()
	if err != nil {
		return err
	}
	// Front insertion is last-in-first-out, so pushing POST, MAIN, PRE
	// leaves PRE at the head.
	m.chain.pushFront(post)
	m.chain.pushFront(main)
	m.chain.pushFront(pre)
	return nil
}

// AcceptMsgDeferred submits a message for deferred processing: its phase
// units go to the tail of the queue, behind everything already pending. An
// unsplit message is split first.
func (m *Manager) AcceptMsgDeferred(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	if msg.phase != PhaseNone {
		m.chain.pushBack(msg)
		return nil
	}
	pre, main, post, err := msg.Split()
	if err != nil {
		return err
	}
	m.chain.pushBack(pre, main, post)
	return nil
}

// Drain processes the queue to exhaustion: pop the head, run its handler,
// then notify listeners, repeating until the queue is empty. Messages
// submitted by handlers or listeners during the drain extend it. Drain is
// not re-entrant; handlers and listeners submit messages and return rather
// than draining themselves.
//
// Handler and listener failures, including recovered panics, are logged and
// do not stop the drain. The configured bound caps both the queue length
// and the number of units dispatched in one drain; a mutually reflecting
// listener pair keeps the queue short while spinning forever, so the
// dispatch budget is what cuts that chain. On either breach the remaining
// work is discarded and a ChainOverflowError is returned.
func (m *Manager) Drain() error {
	if m.draining {
		return ErrDraining
	}
	m.draining = true
	defer func() { m.draining = false }()

	processed := 0
	for m.chain.Len() > 0 {
		if m.maxQueueLen > 0 && (m.chain.Len() > m.maxQueueLen || processed > m.maxQueueLen) {
			queued := m.chain.Len()
			m.chain.Clear()
			m.logger.Error("message chain overflow, queue cleared",
				zap.Int("limit", m.maxQueueLen),
				zap.Int("queued", queued),
				zap.Int("processed", processed))
			return &ChainOverflowError{Limit: m.maxQueueLen, QueueLen: queued, Processed: processed}
		}
		m.dispatch(m.chain.pop())
		processed++
	}
	return nil
}

// dispatch runs one phase unit through its handler and then the listener
// pass, advancing the unit state machine.
func (m *Manager) dispatch(msg *Message) {
	if msg == nil {
		return
	}
	msg.chain = m.chain
	msg.adoptPrev()

	msg.state = UnitDispatchingHandler
	if h, ok := m.handlers.Lookup(msg.msgType, msg.phase); ok {
		if err := m.invokeHandler(h, msg); err != nil {
			m.logger.Warn("handler failed",
				zap.String("message", msg.String()),
				zap.Error(err))
		}
	}

	msg.state = UnitDispatchingListeners
	for _, l := range m.listeners.Snapshot() {
		if msg.HasResponded(l.ListenerID()) {
			continue
		}
		msg.markResponded(l.ListenerID())
		if err := m.invokeListener(l, msg); err != nil {
			m.logger.Warn("listener failed",
				zap.String("message", msg.String()),
				zap.Error(err))
		}
	}

	msg.state = UnitDone
	m.chain.record(msg)
}

func (m *Manager) invokeHandler(h HandlerFunc, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				MessageID: msg.ID(),
				Type:      msg.msgType,
				Phase:     msg.phase,
				Err:       fmt.Errorf("panic: %v", r),
			}
		}
	}()
	if herr := h(msg); herr != nil {
		err = &HandlerError{
			MessageID: msg.ID(),
			Type:      msg.msgType,
			Phase:     msg.phase,
			Err:       herr,
		}
	}
	return err
}

func (m *Manager) invokeListener(l Listener, msg *Message) (err error) {
	key := listenerKey(l)
	defer func() {
		if r := recover(); r != nil {
			err = &ListenerError{
				MessageID: msg.ID(),
				Type:      msg.msgType,
				Phase:     msg.phase,
				Listener:  key,
				Err:       fmt.Errorf("panic: %v", r),
			}
		}
	}()
	if lerr := l.Effect(msg); lerr != nil {
		err = &ListenerError{
			MessageID: msg.ID(),
			Type:      msg.msgType,
			Phase:     msg.phase,
			Listener:  key,
			Err:       lerr,
		}
	}
	return err
}

func listenerKey(l Listener) string {
	type keyed interface{ Key() string }
	if k, ok := l.(keyed); ok && k.Key() != "" {
		return k.Key()
	}
	return l.ListenerID().String()
}
