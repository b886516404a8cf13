// Package skills holds passive-skill listeners built on the battle chain.
// Each skill is owned by one character and registered on that character's
// battle manager; the skills here double as worked examples for content
// authors.
package skills

import (
	"github.com/evoframe/battle-server-go/internal/battle"
	"github.com/evoframe/battle-server-go/internal/battle/chain"
	"github.com/evoframe/battle-server-go/internal/battle/entity"
)

// ThornArmor reflects a share of incoming damage back at the source. The
// reflection is submitted deferred, so it resolves after the triggering
// damage finishes all its phases. Reflected damage can itself be reflected;
// the manager's queue bound is the backstop when two wearers face off.
type ThornArmor struct {
	chain.BaseListener
	owner *entity.Character
	// reflected share in percent
	ratio int
}

// NewThornArmor creates the skill with the stock 30% reflection ratio.
func NewThornArmor(owner *entity.Character) *ThornArmor {
	return &ThornArmor{
		BaseListener: chain.NewBaseListener("thorn_armor:" + owner.Name()),
		owner:        owner,
		ratio:        30,
	}
}

func (s *ThornArmor) Effect(msg *chain.Message) error {
	if msg.Type() != battle.MsgDamage || msg.Phase() != chain.PhasePre {
		return nil
	}
	if msg.Receiver() != chain.Entity(s.owner) || msg.Sender() == chain.Entity(s.owner) {
		return nil
	}
	reflected := msg.Value() * s.ratio / 100
	if reflected <= 0 {
		return nil
	}
	back := msg.Derive(battle.MsgDamage, reflected, s.owner, msg.Sender())
	if err := back.SetExtra(chain.ExtraDamageType, battle.DamageTypeReflect); err != nil {
		return err
	}
	return msg.Chain().Manager().AcceptMsgDeferred(back)
}

// Vitality heals the owner for a fixed amount after every damage they take.
// The heal is submitted immediately so the owner's HP is settled before any
// deferred follow-ups see it.
type Vitality struct {
	chain.BaseListener
	owner  *entity.Character
	amount int
}

// NewVitality creates the skill healing 1 HP per damage taken.
func NewVitality(owner *entity.Character) *Vitality {
	return &Vitality{
		BaseListener: chain.NewBaseListener("vitality:" + owner.Name()),
		owner:        owner,
		amount:       1,
	}
}

func (s *Vitality) Effect(msg *chain.Message) error {
	if msg.Type() != battle.MsgDamage || msg.Phase() != chain.PhasePost {
		return nil
	}
	if msg.Receiver() != chain.Entity(s.owner) || msg.Value() <= 0 {
		return nil
	}
	heal := msg.Derive(battle.MsgHeal, s.amount, s.owner, s.owner)
	return msg.Chain().Manager().AcceptMsg(heal)
}

// Rally heals damaged teammates of the owner. Whenever a teammate (not the
// owner) takes damage, the owner sends them a small deferred heal.
type Rally struct {
	chain.BaseListener
	owner  *entity.Character
	amount int
}

// NewRally creates the skill healing teammates 2 HP per hit taken.
func NewRally(owner *entity.Character) *Rally {
	return &Rally{
		BaseListener: chain.NewBaseListener("rally:" + owner.Name()),
		owner:        owner,
		amount:       2,
	}
}

func (s *Rally) Effect(msg *chain.Message) error {
	if msg.Type() != battle.MsgDamage || msg.Phase() != chain.PhasePost {
		return nil
	}
	if msg.Value() <= 0 {
		return nil
	}
	mate, ok := msg.Receiver().(*entity.Character)
	if !ok || mate == s.owner || mate.Team() != s.owner.Team() {
		return nil
	}
	heal := msg.Derive(battle.MsgHeal, s.amount, s.owner, mate)
	return msg.Chain().Manager().AcceptMsgDeferred(heal)
}

// PowerSurge boosts the owner's weak attacks: when the owner attacks with a
// resolved value below the threshold, a flat bonus modifier is attached at
// the PRE phase so the boosted value carries into MAIN.
type PowerSurge struct {
	chain.BaseListener
	owner     *entity.Character
	bonus     int
	threshold int
}

// NewPowerSurge creates the skill adding +10 to attacks under 25.
func NewPowerSurge(owner *entity.Character) *PowerSurge {
	return &PowerSurge{
		BaseListener: chain.NewBaseListener("power_surge:" + owner.Name()),
		owner:        owner,
		bonus:        10,
		threshold:    25,
	}
}

func (s *PowerSurge) Effect(msg *chain.Message) error {
	if msg.Type() != battle.MsgAttack || msg.Phase() != chain.PhasePre {
		return nil
	}
	if msg.Sender() != chain.Entity(s.owner) || msg.Value() >= s.threshold {
		return nil
	}
	msg.Modify(chain.AddValue("power_surge", s.bonus))
	return nil
}

// Deflection halves damage aimed at the owner and bounces the other half
// back at the source, implemented as a custom modifier so the halving shows
// up in the damage value itself rather than as a separate adjustment.
type Deflection struct {
	chain.BaseListener
	owner *entity.Character
}

// NewDeflection creates the skill.
func NewDeflection(owner *entity.Character) *Deflection {
	return &Deflection{
		BaseListener: chain.NewBaseListener("deflection:" + owner.Name()),
		owner:        owner,
	}
}

func (s *Deflection) Effect(msg *chain.Message) error {
	if msg.Type() != battle.MsgDamage || msg.Phase() != chain.PhasePre {
		return nil
	}
	if msg.Receiver() != chain.Entity(s.owner) || msg.Sender() == chain.Entity(s.owner) {
		return nil
	}
	if msg.StringExtra(chain.ExtraDamageType) == battle.DamageTypeReflect {
		return nil
	}
	owner := s.owner
	// the pipeline may refold if a later modifier invalidates the memo;
	// the halving is pure but the bounce must only be spawned once
	fired := false
	msg.Modify(chain.Custom("deflection", func(m *chain.Message, current int) (int, int, bool) {
		if current <= 1 {
			return current, current, false
		}
		kept := current / 2
		if !fired {
			back := m.Derive(battle.MsgDamage, current-kept, owner, m.Sender())
			if err := back.SetExtra(chain.ExtraDamageType, battle.DamageTypeReflect); err != nil {
				return current, current, false
			}
			if err := m.Chain().Manager().AcceptMsgDeferred(back); err != nil {
				return current, current, false
			}
			fired = true
		}
		return current, kept, true
	}))
	return nil
}
