package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoframe/battle-server-go/internal/battle/chain"
	"github.com/evoframe/battle-server-go/internal/battle/entity"
)

func TestEngineBattleLifecycle(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))

	b := e.CreateBattle()
	assert.Equal(t, 1, e.BattleCount())

	got, err := e.GetBattle(b.ID())
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.NoError(t, e.EndBattle(b.ID()))
	assert.Equal(t, 0, e.BattleCount())

	_, err = e.GetBattle(b.ID())
	assert.Error(t, err)
	assert.Error(t, e.EndBattle(b.ID()))
}

func TestBattleCharacterEnrollment(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b := e.CreateBattle()

	hero := newCombatant("hero", 0)
	require.NoError(t, b.AddCharacter(hero))
	assert.Error(t, b.AddCharacter(hero))
	assert.Error(t, b.AddCharacter(nil))

	got, err := b.Character(hero.EntityID())
	require.NoError(t, err)
	assert.Same(t, hero, got)

	_, err = b.Character("nobody")
	assert.Error(t, err)

	assert.Len(t, b.Characters(), 1)
}

func TestSubmitAttackSettlesHP(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b := e.CreateBattle()
	hero := newCombatant("hero", 0)
	ogre := newCombatant("ogre", 1)
	require.NoError(t, b.AddCharacter(hero))
	require.NoError(t, b.AddCharacter(ogre))

	require.NoError(t, b.SubmitAttack(hero.EntityID(), ogre.EntityID(), 23))
	assert.Equal(t, 87, ogre.HP())

	assert.Error(t, b.SubmitAttack("nobody", ogre.EntityID(), 1))
	assert.Error(t, b.SubmitAttack(hero.EntityID(), "nobody", 1))
}

func TestSubmitAttackRejectsDownedAttacker(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b := e.CreateBattle()
	hero := newCombatant("hero", 0)
	ogre := newCombatant("ogre", 1)
	require.NoError(t, b.AddCharacter(hero))
	require.NoError(t, b.AddCharacter(ogre))

	hero.Damage(100)
	assert.Error(t, b.SubmitAttack(hero.EntityID(), ogre.EntityID(), 23))
}

func TestSubmitHeal(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b := e.CreateBattle()
	hero := newCombatant("hero", 0)
	require.NoError(t, b.AddCharacter(hero))
	hero.Damage(40)

	require.NoError(t, b.SubmitHeal(hero.EntityID(), hero.EntityID(), 15))
	assert.Equal(t, 75, hero.HP())
}

func TestBattleHandlerOverrideIsIsolated(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b1 := e.CreateBattle()
	b2 := e.CreateBattle()

	// b1 replaces DAMAGE with a no-op; b2 keeps the baseline
	b1.Manager().Handlers().Replace(MsgDamage, chain.PhaseMain, func(*chain.Message) error {
		return nil
	})

	for _, b := range []*Battle{b1, b2} {
		hero := newCombatant("hero", 0)
		ogre := newCombatant("ogre", 1)
		require.NoError(t, b.AddCharacter(hero))
		require.NoError(t, b.AddCharacter(ogre))
		require.NoError(t, b.SubmitAttack(hero.EntityID(), ogre.EntityID(), 23))
	}

	assert.Equal(t, 100, b1.Characters()[1].HP())
	assert.Equal(t, 87, b2.Characters()[1].HP())
}

// A battle's roll outcomes depend only on the engine seed, the battle's
// creation rank, and its own action order. Activity in a sibling battle on
// the same engine must not perturb them.
func TestReplayUnaffectedBySiblingBattles(t *testing.T) {
	fight := func(withSibling bool) []LogEntry {
		e := NewEngine(nil, WithSeed(42))
		b := e.CreateBattle()
		sibling := e.CreateBattle()

		// default stats keep the 5% crit and dodge rolls live
		hero := entity.NewDefaultCharacter("hero", 0)
		ogre := entity.NewDefaultCharacter("ogre", 1)
		require.NoError(t, b.AddCharacter(hero))
		require.NoError(t, b.AddCharacter(ogre))

		if withSibling {
			sHero := entity.NewDefaultCharacter("s-hero", 0)
			sOgre := entity.NewDefaultCharacter("s-ogre", 1)
			require.NoError(t, sibling.AddCharacter(sHero))
			require.NoError(t, sibling.AddCharacter(sOgre))
			for i := 0; i < 7; i++ {
				require.NoError(t, sibling.SubmitAttack(sHero.EntityID(), sOgre.EntityID(), 11))
			}
		}

		for i := 0; i < 20; i++ {
			require.NoError(t, b.SubmitAttack(hero.EntityID(), ogre.EntityID(), 11))
		}
		return b.Snapshot().Log
	}

	solo := fight(false)
	interleaved := fight(true)
	require.Equal(t, len(solo), len(interleaved))
	for i := range solo {
		assert.Equal(t, solo[i], interleaved[i], "log entry %d diverged", i)
	}
}

func TestSnapshotReflectsState(t *testing.T) {
	e := NewEngine(nil, WithSeed(7))
	b := e.CreateBattle()
	hero := entity.NewDefaultCharacter("hero", 0)
	require.NoError(t, hero.SetAttribute(entity.AttrEvasion, 0))
	require.NoError(t, hero.SetAttribute(entity.AttrCritical, 0))
	ogre := newCombatant("ogre", 1)
	require.NoError(t, b.AddCharacter(hero))
	require.NoError(t, b.AddCharacter(ogre))

	require.NoError(t, b.SubmitAttack(hero.EntityID(), ogre.EntityID(), 23))

	snap := b.Snapshot()
	assert.Equal(t, b.ID().String(), snap.BattleID)
	require.Len(t, snap.Characters, 2)
	assert.Equal(t, "hero", snap.Characters[0].Name)
	assert.Equal(t, 87, snap.Characters[1].HP)
	assert.True(t, snap.Characters[1].Alive)

	// MAIN units only: one ATTACK and one DAMAGE
	require.Len(t, snap.Log, 2)
	assert.Equal(t, "ATTACK", snap.Log[0].Type)
	assert.Equal(t, "DAMAGE", snap.Log[1].Type)
	assert.Equal(t, 13, snap.Log[1].Value)
	assert.Equal(t, "hero", snap.Log[1].Sender)
	assert.Equal(t, "ogre", snap.Log[1].Receiver)
}
