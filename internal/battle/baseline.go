// Package battle ties the message chain to combatants: the stock combat
// handlers, the per-battle state, and the session engine.
package battle

import (
	"fmt"
	"math/rand"

	"github.com/evoframe/battle-server-go/internal/battle/chain"
	"github.com/evoframe/battle-server-go/internal/battle/entity"
)

// The stock message vocabulary. Content code derives further types as
// needed; only these three have baseline handlers.
const (
	MsgAttack chain.MessageType = "ATTACK"
	MsgDamage chain.MessageType = "DAMAGE"
	MsgHeal   chain.MessageType = "HEAL"
)

// Damage type labels carried in the ExtraDamageType metadata slot.
const (
	// DamageTypePhysical labels damage produced by a resolved attack.
	DamageTypePhysical = "physical"
	// DamageTypeReflect labels damage bounced back by a skill.
	DamageTypeReflect = "reflect"
)

// NewBaseRegistry builds the shared baseline handler registry: ATTACK
// resolves hit/crit/dodge and spawns DAMAGE, DAMAGE subtracts HP, HEAL
// restores it. Per-battle registries delegate to the result and shadow
// individual entries as content requires.
//
// rng drives the evasion and critical rolls; inject a seeded source for
// reproducible battles.
func NewBaseRegistry(rng *rand.Rand) *chain.HandlerRegistry {
	reg := chain.NewHandlerRegistry(nil)

	reg.Handles(MsgAttack, chain.PhaseMain)(func(msg *chain.Message) error {
		return resolveAttack(msg, rng)
	})
	reg.Handles(MsgDamage, chain.PhaseMain)(applyDamage)
	reg.Handles(MsgHeal, chain.PhaseMain)(applyHeal)

	return reg
}

// resolveAttack turns an ATTACK into a DAMAGE message. A zero or negative
// attack value means "use the attacker's attack stat". The spawned DAMAGE
// is submitted immediately so it fully resolves before the attack's POST
// phase runs.
func resolveAttack(msg *chain.Message, rng *rand.Rand) error {
	if msg.BoolExtra(chain.ExtraIgnore) {
		return nil
	}
	attacker, defender, err := combatants(msg)
	if err != nil {
		return err
	}

	raw := msg.Value()
	if raw <= 0 {
		raw = attacker.Attributes().Attack
	}
	damage := raw - defender.Attributes().Defense
	if damage < 0 {
		damage = 0
	}

	if roll(rng) < defender.Attributes().Evasion {
		return msg.SetExtra(chain.ExtraDodge, true)
	}

	crit := roll(rng) < attacker.Attributes().Critical
	afterCrit := damage
	if crit {
		afterCrit = damage * attacker.Attributes().CriticalDamage / 100
	}

	dmg := msg.Derive(MsgDamage, afterCrit, attacker, defender)
	if err := dmg.SetExtra(chain.ExtraRawDamage, damage); err != nil {
		return err
	}
	if err := dmg.SetExtra(chain.ExtraCrit, crit); err != nil {
		return err
	}
	if err := dmg.SetExtra(chain.ExtraAfterCritDamage, afterCrit); err != nil {
		return err
	}
	if err := dmg.SetExtra(chain.ExtraDamageType, DamageTypePhysical); err != nil {
		return err
	}
	return msg.Chain().Manager().AcceptMsg(dmg)
}

func applyDamage(msg *chain.Message) error {
	if msg.BoolExtra(chain.ExtraIgnore) {
		return nil
	}
	target, ok := msg.Receiver().(*entity.Character)
	if !ok {
		return fmt.Errorf("damage receiver %v is not a character", msg.Receiver())
	}
	target.Damage(msg.Value())
	return nil
}

func applyHeal(msg *chain.Message) error {
	if msg.BoolExtra(chain.ExtraIgnore) {
		return nil
	}
	target, ok := msg.Receiver().(*entity.Character)
	if !ok {
		return fmt.Errorf("heal receiver %v is not a character", msg.Receiver())
	}
	target.Heal(msg.Value())
	return nil
}

func combatants(msg *chain.Message) (attacker, defender *entity.Character, err error) {
	attacker, ok := msg.Sender().(*entity.Character)
	if !ok {
		return nil, nil, fmt.Errorf("attack sender %v is not a character", msg.Sender())
	}
	defender, ok = msg.Receiver().(*entity.Character)
	if !ok {
		return nil, nil, fmt.Errorf("attack receiver %v is not a character", msg.Receiver())
	}
	return attacker, defender, nil
}

// roll returns a uniform percentage in [0, 100).
func roll(rng *rand.Rand) int {
	if rng == nil {
		return 100 // no rng, no random outcomes
	}
	return rng.Intn(100)
}
