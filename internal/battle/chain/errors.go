package chain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDraining is returned when Drain is called while a drain is already in
// progress. Handlers and listeners may only enqueue, never drain.
var ErrDraining = errors.New("chain: drain already in progress")

// DuplicateHandlerError is returned by HandlerRegistry.Register when the
// (type, phase) key already resolves somewhere in the delegation chain.
type DuplicateHandlerError struct {
	Type  MessageType
	Phase Phase
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("handler already registered for %s/%s (use Replace to override)", e.Type, e.Phase)
}

// UnknownExtraKeyError is returned when writing to an undeclared extra key.
type UnknownExtraKeyError struct {
	Key string
}

func (e *UnknownExtraKeyError) Error() string {
	return fmt.Sprintf("unknown extra key %q", e.Key)
}

// ExtraTypeMismatchError is returned when an extra write violates the key's
// declared value type.
type ExtraTypeMismatchError struct {
	Key   ExtraKey
	Value any
}

func (e *ExtraTypeMismatchError) Error() string {
	return fmt.Sprintf("extra key %q wants %s, got %T", e.Key.Name, e.Key.Kind, e.Value)
}

// HandlerError wraps a failure (returned error or panic) raised inside a
// handler during dispatch. It is logged and does not abort the drain.
type HandlerError struct {
	MessageID uuid.UUID
	Type      MessageType
	Phase     Phase
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s/%s failed on message %s: %v", e.Type, e.Phase, e.MessageID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ListenerError wraps a failure raised inside a listener's Effect. It is
// logged and the remaining listeners still run.
type ListenerError struct {
	MessageID uuid.UUID
	Type      MessageType
	Phase     Phase
	Listener  string
	Err       error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s failed on message %s (%s/%s): %v",
		e.Listener, e.MessageID, e.Type, e.Phase, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// ChainOverflowError is returned by Drain when the pending queue or the
// number of units dispatched in one drain grows past the manager's
// configured limit, which indicates a runaway reaction chain. The queue is
// cleared before the error is returned.
type ChainOverflowError struct {
	Limit     int
	QueueLen  int
	Processed int
}

func (e *ChainOverflowError) Error() string {
	return fmt.Sprintf("message chain exceeded limit %d: %d pending, %d dispatched", e.Limit, e.QueueLen, e.Processed)
}
