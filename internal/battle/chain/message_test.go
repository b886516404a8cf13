package chain

import (
	"errors"
	"testing"
)

type testEntity struct {
	id string
}

func (e *testEntity) EntityID() string { return e.id }

func TestValueFoldsModifiersInOrder(t *testing.T) {
	a := &testEntity{id: "a"}
	b := &testEntity{id: "b"}
	msg := NewMessage("ATTACK", 10, a, b)

	msg.Modify(AddValue("rage", 5))
	msg.Modify(SetValue("halve", func(current int, _ *Message) int {
		return current / 2
	}))

	// (10 + 5) / 2
	if got := msg.Value(); got != 7 {
		t.Errorf("expected value 7, got %d", got)
	}
	if msg.BaseValue() != 10 {
		t.Errorf("base value should stay 10, got %d", msg.BaseValue())
	}
}

func TestModifyReplacesByName(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	msg.Modify(AddValue("buff", 5))
	msg.Modify(AddValue("other", 1))
	msg.Modify(AddValue("buff", 20))

	// replacement keeps the original pipeline position
	if got := msg.Value(); got != 31 {
		t.Errorf("expected value 31, got %d", got)
	}
	if len(msg.Modifiers()) != 2 {
		t.Errorf("expected 2 modifiers, got %d", len(msg.Modifiers()))
	}
}

func TestRemoveModifier(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	msg.Modify(AddValue("a", 1))
	msg.Modify(AddValue("b", 2))
	msg.Modify(AddValue("c", 3))

	if !msg.RemoveModifier("b") {
		t.Fatal("expected RemoveModifier to report success")
	}
	if msg.RemoveModifier("b") {
		t.Error("second removal should report false")
	}
	if got := msg.Value(); got != 14 {
		t.Errorf("expected value 14 after removal, got %d", got)
	}
	// index map must survive the shift
	msg.Modify(AddValue("c", 30))
	if got := msg.Value(); got != 41 {
		t.Errorf("expected value 41 after replacing c, got %d", got)
	}
}

func TestSenderReceiverModifiers(t *testing.T) {
	a := &testEntity{id: "a"}
	b := &testEntity{id: "b"}
	c := &testEntity{id: "c"}
	msg := NewMessage("ATTACK", 10, a, b)

	msg.Modify(SetReceiver("redirect", c))
	if msg.Receiver() != c {
		t.Errorf("expected receiver c, got %v", msg.Receiver())
	}
	if msg.Sender() != a {
		t.Errorf("sender should be unchanged, got %v", msg.Sender())
	}
}

func TestCustomModifierAccepted(t *testing.T) {
	msg := NewMessage("DAMAGE", 10, nil, nil)
	msg.Modify(Custom("halve", func(_ *Message, current int) (int, int, bool) {
		return current, current / 2, true
	}))
	msg.Modify(Custom("reject", func(_ *Message, current int) (int, int, bool) {
		return current, 0, false
	}))

	if got := msg.Value(); got != 5 {
		t.Errorf("expected value 5, got %d", got)
	}
}

func TestValueMemoized(t *testing.T) {
	calls := 0
	msg := NewMessage("ATTACK", 10, nil, nil)
	msg.Modify(SetValue("count", func(current int, _ *Message) int {
		calls++
		return current + 1
	}))

	msg.Value()
	msg.Value()
	if calls != 1 {
		t.Errorf("expected 1 fold, got %d", calls)
	}

	msg.Modify(AddValue("other", 1))
	msg.Value()
	if calls != 2 {
		t.Errorf("expected refold after Modify, got %d calls", calls)
	}
}

func TestSetExtraRejectsUnknownKey(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	err := msg.SetExtra(ExtraKey{Name: "bogus", Kind: ExtraInt}, 1)
	var unknownErr *UnknownExtraKeyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownExtraKeyError, got %v", err)
	}
}

func TestSetExtraRejectsWrongType(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	err := msg.SetExtra(ExtraCrit, "yes")
	var mismatchErr *ExtraTypeMismatchError
	if !errors.As(err, &mismatchErr) {
		t.Fatalf("expected ExtraTypeMismatchError, got %v", err)
	}
	if _, ok := msg.Extra(ExtraCrit); ok {
		t.Error("failed write must not be stored")
	}
}

func TestTypedExtraAccessors(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	if err := msg.SetExtra(ExtraRawDamage, 42); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}
	if err := msg.SetExtra(ExtraCrit, true); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}
	if err := msg.SetExtra(ExtraDamageType, "reflect"); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}

	if msg.IntExtra(ExtraRawDamage) != 42 {
		t.Error("IntExtra mismatch")
	}
	if !msg.BoolExtra(ExtraCrit) {
		t.Error("BoolExtra mismatch")
	}
	if msg.StringExtra(ExtraDamageType) != "reflect" {
		t.Error("StringExtra mismatch")
	}
	if msg.IntExtra(ExtraAfterCritDamage) != 0 {
		t.Error("absent int key should read as 0")
	}

	msg.RemoveExtra(ExtraCrit)
	if msg.BoolExtra(ExtraCrit) {
		t.Error("removed key should read as false")
	}
}

func TestSplitProducesThreeLinkedSiblings(t *testing.T) {
	a := &testEntity{id: "a"}
	b := &testEntity{id: "b"}
	msg := NewMessage("ATTACK", 10, a, b)
	if err := msg.SetExtra(ExtraDamageType, "physical"); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}
	msg.Modify(AddValue("buff", 3))

	pre, main, post, err := msg.Split()
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for _, s := range []*Message{pre, main, post} {
		if s.Type() != "ATTACK" || s.BaseValue() != 10 {
			t.Errorf("sibling %s lost base state", s)
		}
		if s.StringExtra(ExtraDamageType) != "physical" {
			t.Errorf("sibling %s lost extras", s)
		}
	}
	if pre.Phase() != PhasePre || main.Phase() != PhaseMain || post.Phase() != PhasePost {
		t.Error("wrong phases on siblings")
	}

	// pre-submission modifiers belong to the earliest phase only
	if got := pre.Value(); got != 13 {
		t.Errorf("expected pre value 13, got %d", got)
	}
	if len(main.Modifiers()) != 0 || len(post.Modifiers()) != 0 {
		t.Error("main/post must start with empty pipelines")
	}

	// extras are copies, not shared
	if err := pre.SetExtra(ExtraCrit, true); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}
	if main.BoolExtra(ExtraCrit) {
		t.Error("sibling extras must be independent")
	}
}

func TestSplitTwiceFails(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	pre, _, _, err := msg.Split()
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if _, _, _, err := pre.Split(); err == nil {
		t.Error("splitting a phased message must fail")
	}
}

func TestAdoptPrevPullsResolvedState(t *testing.T) {
	a := &testEntity{id: "a"}
	b := &testEntity{id: "b"}
	c := &testEntity{id: "c"}
	msg := NewMessage("ATTACK", 10, a, b)

	pre, main, _, err := msg.Split()
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	pre.Modify(AddValue("pre-buff", 7))
	pre.Modify(SetReceiver("redirect", c))
	if err := pre.SetExtra(ExtraCrit, true); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}

	main.adoptPrev()
	if main.BaseValue() != 17 {
		t.Errorf("main should adopt pre's resolved value, got %d", main.BaseValue())
	}
	if main.Receiver() != c {
		t.Error("main should adopt pre's resolved receiver")
	}
	if !main.BoolExtra(ExtraCrit) {
		t.Error("main should adopt pre's extras")
	}
	// main's own pipeline folds over the adopted base
	main.Modify(AddValue("main-buff", 1))
	if got := main.Value(); got != 18 {
		t.Errorf("expected 18, got %d", got)
	}
}

func TestDeriveSharesOnlyChain(t *testing.T) {
	msg := NewMessage("ATTACK", 10, nil, nil)
	msg.Modify(AddValue("buff", 5))
	if err := msg.SetExtra(ExtraCrit, true); err != nil {
		t.Fatalf("SetExtra: %v", err)
	}

	d := msg.Derive("DAMAGE", 3, nil, nil)
	if d.Type() != "DAMAGE" || d.BaseValue() != 3 {
		t.Error("derived message has wrong identity")
	}
	if len(d.Modifiers()) != 0 {
		t.Error("derived message must not inherit the pipeline")
	}
	if d.BoolExtra(ExtraCrit) {
		t.Error("derived message must not inherit extras")
	}
}
