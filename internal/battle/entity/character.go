// Package entity holds the combatant model the battle engine acts on.
package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// Attribute names a numeric stat on a character.
type Attribute string

const (
	AttrHP             Attribute = "hp"
	AttrMaxHP          Attribute = "max_hp"
	AttrAttack         Attribute = "attack"
	AttrDefense        Attribute = "defense"
	AttrEvasion        Attribute = "evasion"
	AttrCritical       Attribute = "critical"
	AttrCriticalDamage Attribute = "critical_damage"
	AttrTeam           Attribute = "team"
)

// Attributes is the numeric stat block of a character. Evasion and Critical
// are percentages; CriticalDamage is a percentage multiplier (200 means a
// critical hit deals double damage).
type Attributes struct {
	HP             int `json:"hp"`
	MaxHP          int `json:"max_hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	Evasion        int `json:"evasion"`
	Critical       int `json:"critical"`
	CriticalDamage int `json:"critical_damage"`
	Team           int `json:"team"`
}

// DefaultAttributes returns the stock stat block for a fresh combatant.
func DefaultAttributes() Attributes {
	return Attributes{
		HP:             100,
		MaxHP:          100,
		Attack:         10,
		Defense:        10,
		Evasion:        5,
		Critical:       5,
		CriticalDamage: 200,
		Team:           0,
	}
}

// Character is a single combatant. Its HP is always held inside [0, MaxHP];
// the mutation helpers clamp rather than error on overshoot.
type Character struct {
	id    uuid.UUID
	name  string
	attrs Attributes
}

// NewCharacter creates a combatant with the given stat block.
func NewCharacter(name string, attrs Attributes) *Character {
	if attrs.MaxHP > 0 && attrs.HP > attrs.MaxHP {
		attrs.HP = attrs.MaxHP
	}
	if attrs.HP < 0 {
		attrs.HP = 0
	}
	return &Character{
		id:    uuid.New(),
		name:  name,
		attrs: attrs,
	}
}

// NewDefaultCharacter creates a combatant with the stock stat block on the
// given team.
func NewDefaultCharacter(name string, team int) *Character {
	attrs := DefaultAttributes()
	attrs.Team = team
	return NewCharacter(name, attrs)
}

// EntityID implements the chain entity identity.
func (c *Character) EntityID() string { return c.id.String() }

// ID returns the character's unique identifier.
func (c *Character) ID() uuid.UUID { return c.id }

// Name returns the display name.
func (c *Character) Name() string { return c.name }

// Attributes returns a copy of the current stat block.
func (c *Character) Attributes() Attributes { return c.attrs }

// HP returns the current hit points.
func (c *Character) HP() int { return c.attrs.HP }

// Alive reports whether the character has hit points left.
func (c *Character) Alive() bool { return c.attrs.HP > 0 }

// Team returns the character's team number.
func (c *Character) Team() int { return c.attrs.Team }

// Attribute reads a stat by name.
func (c *Character) Attribute(attr Attribute) (int, error) {
	switch attr {
	case AttrHP:
		return c.attrs.HP, nil
	case AttrMaxHP:
		return c.attrs.MaxHP, nil
	case AttrAttack:
		return c.attrs.Attack, nil
	case AttrDefense:
		return c.attrs.Defense, nil
	case AttrEvasion:
		return c.attrs.Evasion, nil
	case AttrCritical:
		return c.attrs.Critical, nil
	case AttrCriticalDamage:
		return c.attrs.CriticalDamage, nil
	case AttrTeam:
		return c.attrs.Team, nil
	default:
		return 0, fmt.Errorf("unknown attribute %q", attr)
	}
}

// SetAttribute writes a stat by name. HP is clamped to [0, MaxHP]; lowering
// MaxHP below current HP pulls HP down with it.
func (c *Character) SetAttribute(attr Attribute, value int) error {
	switch attr {
	case AttrHP:
		c.attrs.HP = clamp(value, 0, c.attrs.MaxHP)
	case AttrMaxHP:
		if value < 0 {
			value = 0
		}
		c.attrs.MaxHP = value
		if c.attrs.HP > value {
			c.attrs.HP = value
		}
	case AttrAttack:
		c.attrs.Attack = value
	case AttrDefense:
		c.attrs.Defense = value
	case AttrEvasion:
		c.attrs.Evasion = value
	case AttrCritical:
		c.attrs.Critical = value
	case AttrCriticalDamage:
		c.attrs.CriticalDamage = value
	case AttrTeam:
		c.attrs.Team = value
	default:
		return fmt.Errorf("unknown attribute %q", attr)
	}
	return nil
}

// ChangeAttribute adjusts a stat by a delta, with the same clamping rules
// as SetAttribute. It returns the new value.
func (c *Character) ChangeAttribute(attr Attribute, delta int) (int, error) {
	current, err := c.Attribute(attr)
	if err != nil {
		return 0, err
	}
	if err := c.SetAttribute(attr, current+delta); err != nil {
		return 0, err
	}
	return c.Attribute(attr)
}

// Damage lowers HP by amount (never below zero) and returns the HP actually
// lost.
func (c *Character) Damage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	before := c.attrs.HP
	c.attrs.HP = clamp(before-amount, 0, c.attrs.MaxHP)
	return before - c.attrs.HP
}

// Heal raises HP by amount (never above MaxHP) and returns the HP actually
// restored.
func (c *Character) Heal(amount int) int {
	if amount < 0 {
		amount = 0
	}
	before := c.attrs.HP
	c.attrs.HP = clamp(before+amount, 0, c.attrs.MaxHP)
	return c.attrs.HP - before
}

func (c *Character) String() string {
	return fmt.Sprintf("%s(%d/%d hp, team %d)", c.name, c.attrs.HP, c.attrs.MaxHP, c.attrs.Team)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
