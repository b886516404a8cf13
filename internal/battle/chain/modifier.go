package chain

// ModifierKind describes what part of a message a modifier transforms.
type ModifierKind int

const (
	// ModifierSetValue transforms the numeric payload.
	ModifierSetValue ModifierKind = iota
	// ModifierSetSender replaces the acting entity.
	ModifierSetSender
	// ModifierSetReceiver replaces the target entity.
	ModifierSetReceiver
	// ModifierCustom runs arbitrary content logic, optionally with side
	// effects such as spawning new messages through the manager.
	ModifierCustom
)

// String returns the string representation of the modifier kind.
func (k ModifierKind) String() string {
	switch k {
	case ModifierSetValue:
		return "SET_VALUE"
	case ModifierSetSender:
		return "SET_SENDER"
	case ModifierSetReceiver:
		return "SET_RECEIVER"
	case ModifierCustom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// ValueFunc maps the current folded value to a new one.
type ValueFunc func(current int, msg *Message) int

// CustomFunc is a content-defined transform. It receives the message and the
// current folded value and returns the raw input it saw, the resulting value
// and whether the result should be accepted into the fold. A CustomFunc may
// spawn new messages, but only through the manager's submission entry points
// (AcceptMsg / AcceptMsgDeferred), which enqueue without re-entrant dispatch.
// The fold is memoized, but a later Modify invalidates the memo and re-runs
// every modifier; a CustomFunc with side effects must guard against firing
// them more than once.
type CustomFunc func(msg *Message, current int) (raw int, result int, accepted bool)

// Modifier is a named transform attached to exactly one message's pipeline.
// Names are unique within a pipeline; attaching a second modifier with the
// same name replaces the first (see Message.Modify). Modifiers apply in
// attachment order and are destroyed with their message.
type Modifier struct {
	Kind   ModifierKind
	Name   string
	Value  ValueFunc  // ModifierSetValue
	Entity Entity     // ModifierSetSender / ModifierSetReceiver
	Custom CustomFunc // ModifierCustom
}

// SetValue builds a value-transforming modifier.
func SetValue(name string, fn ValueFunc) Modifier {
	return Modifier{Kind: ModifierSetValue, Name: name, Value: fn}
}

// SetValueTo builds a modifier that overwrites the value with a constant.
func SetValueTo(name string, value int) Modifier {
	return Modifier{Kind: ModifierSetValue, Name: name, Value: func(int, *Message) int { return value }}
}

// AddValue builds a modifier that adds a constant to the current value.
func AddValue(name string, delta int) Modifier {
	return Modifier{Kind: ModifierSetValue, Name: name, Value: func(cur int, _ *Message) int { return cur + delta }}
}

// SetSender builds a modifier that replaces the acting entity.
func SetSender(name string, e Entity) Modifier {
	return Modifier{Kind: ModifierSetSender, Name: name, Entity: e}
}

// SetReceiver builds a modifier that replaces the target entity.
func SetReceiver(name string, e Entity) Modifier {
	return Modifier{Kind: ModifierSetReceiver, Name: name, Entity: e}
}

// Custom builds a content-defined modifier.
func Custom(name string, fn CustomFunc) Modifier {
	return Modifier{Kind: ModifierCustom, Name: name, Custom: fn}
}
