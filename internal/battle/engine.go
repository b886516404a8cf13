package battle

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evoframe/battle-server-go/internal/battle/chain"
	"github.com/evoframe/battle-server-go/internal/battle/entity"
)

// Engine manages battle sessions. Each battle owns an isolated chain
// manager delegating to its own baseline registry, so content overrides in
// one battle never leak into another.
//
// The engine's own maps are guarded by a mutex, but a Battle is strictly
// single-threaded; callers serialize all access to one battle.
type Engine struct {
	logger      *zap.Logger
	seed        int64
	maxQueueLen int

	mu      sync.RWMutex
	battles map[uuid.UUID]*Battle
	created int64
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithSeed fixes the engine's RNG seed; each battle derives its own stream
// from it, so runs with the same seed and action order replay identically.
func WithSeed(seed int64) EngineOption {
	return func(e *Engine) { e.seed = seed }
}

// WithBattleQueueLimit overrides the per-battle message queue bound.
func WithBattleQueueLimit(n int) EngineOption {
	return func(e *Engine) { e.maxQueueLen = n }
}

// NewEngine creates a battle engine. logger may be nil.
func NewEngine(logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:      logger,
		seed:        rand.Int63(),
		maxQueueLen: chain.DefaultMaxQueueLen,
		battles:     make(map[uuid.UUID]*Battle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateBattle starts a new empty battle session. The battle's baseline
// handlers roll on the battle's own RNG stream, so a battle's outcomes
// depend only on the engine seed, its creation rank, and its own action
// order, never on activity in sibling battles.
func (e *Engine) CreateBattle() *Battle {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.created++
	rng := rand.New(rand.NewSource(e.seed + e.created))
	b := &Battle{
		id:     uuid.New(),
		logger: e.logger,
		rng:    rng,
		manager: chain.NewManager(NewBaseRegistry(rng),
			chain.WithLogger(e.logger),
			chain.WithMaxQueueLen(e.maxQueueLen)),
		characters: make(map[string]*entity.Character),
	}
	e.battles[b.id] = b

	e.logger.Info("battle created", zap.String("battle_id", b.id.String()))
	return b
}

// GetBattle looks up a running battle.
func (e *Engine) GetBattle(id uuid.UUID) (*Battle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.battles[id]
	if !ok {
		return nil, fmt.Errorf("battle %s not found", id)
	}
	return b, nil
}

// EndBattle tears a battle down. Pending messages are discarded.
func (e *Engine) EndBattle(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.battles[id]
	if !ok {
		return fmt.Errorf("battle %s not found", id)
	}
	delete(e.battles, id)
	b.manager.Chain().Clear()
	e.logger.Info("battle ended", zap.String("battle_id", id.String()))
	return nil
}

// BattleCount reports the number of running battles.
func (e *Engine) BattleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.battles)
}

// Battle is one combat session: its combatants, its chain manager, and a
// derived RNG stream. Not safe for concurrent use.
type Battle struct {
	id         uuid.UUID
	logger     *zap.Logger
	rng        *rand.Rand
	manager    *chain.Manager
	characters map[string]*entity.Character
	order      []*entity.Character
}

// ID identifies the battle.
func (b *Battle) ID() uuid.UUID { return b.id }

// Manager exposes the battle's chain manager so content code can register
// listeners and override handlers.
func (b *Battle) Manager() *chain.Manager { return b.manager }

// Rng is the battle's deterministic random stream for content code.
func (b *Battle) Rng() *rand.Rand { return b.rng }

// AddCharacter enrolls a combatant.
func (b *Battle) AddCharacter(c *entity.Character) error {
	if c == nil {
		return fmt.Errorf("nil character")
	}
	if _, ok := b.characters[c.EntityID()]; ok {
		return fmt.Errorf("character %s already in battle", c.EntityID())
	}
	b.characters[c.EntityID()] = c
	b.order = append(b.order, c)
	return nil
}

// Character looks up a combatant by entity id.
func (b *Battle) Character(entityID string) (*entity.Character, error) {
	c, ok := b.characters[entityID]
	if !ok {
		return nil, fmt.Errorf("character %s not in battle", entityID)
	}
	return c, nil
}

// Characters returns the combatants in enrollment order.
func (b *Battle) Characters() []*entity.Character {
	out := make([]*entity.Character, len(b.order))
	copy(out, b.order)
	return out
}

// SubmitAttack builds an ATTACK from attacker to target and drains the
// chain. A zero value means "use the attacker's attack stat". The battle
// log and all combatant HP are settled when it returns.
func (b *Battle) SubmitAttack(attackerID, targetID string, value int) error {
	attacker, err := b.Character(attackerID)
	if err != nil {
		return err
	}
	target, err := b.Character(targetID)
	if err != nil {
		return err
	}
	if !attacker.Alive() {
		return fmt.Errorf("attacker %s is down", attacker.Name())
	}

	msg := chain.NewMessage(MsgAttack, value, attacker, target)
	if err := b.manager.AcceptMsgDeferred(msg); err != nil {
		return err
	}
	return b.drain()
}

// SubmitHeal builds a HEAL onto the target and drains the chain.
func (b *Battle) SubmitHeal(sourceID, targetID string, value int) error {
	source, err := b.Character(sourceID)
	if err != nil {
		return err
	}
	target, err := b.Character(targetID)
	if err != nil {
		return err
	}

	msg := chain.NewMessage(MsgHeal, value, source, target)
	if err := b.manager.AcceptMsgDeferred(msg); err != nil {
		return err
	}
	return b.drain()
}

func (b *Battle) drain() error {
	if err := b.manager.Drain(); err != nil {
		b.logger.Error("battle drain failed",
			zap.String("battle_id", b.id.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// LogEntry is one settled phase unit, rendered for clients.
type LogEntry struct {
	Type     string `json:"type"`
	Phase    string `json:"phase"`
	Value    int    `json:"value"`
	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	Crit     bool   `json:"crit,omitempty"`
	Dodge    bool   `json:"dodge,omitempty"`
}

// CharacterView is a combatant snapshot for clients.
type CharacterView struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"max_hp"`
	Team     int    `json:"team"`
	Alive    bool   `json:"alive"`
}

// Snapshot is the client-facing state of a battle after a drain.
type Snapshot struct {
	BattleID   string          `json:"battle_id"`
	Characters []CharacterView `json:"characters"`
	Log        []LogEntry      `json:"log"`
}

// Snapshot renders the current battle state. Only MAIN-phase history
// entries appear in the log; PRE and POST units are bookkeeping.
func (b *Battle) Snapshot() Snapshot {
	snap := Snapshot{BattleID: b.id.String()}
	for _, c := range b.order {
		attrs := c.Attributes()
		snap.Characters = append(snap.Characters, CharacterView{
			EntityID: c.EntityID(),
			Name:     c.Name(),
			HP:       attrs.HP,
			MaxHP:    attrs.MaxHP,
			Team:     attrs.Team,
			Alive:    c.Alive(),
		})
	}
	for _, msg := range b.manager.Chain().History() {
		if msg.Phase() != chain.PhaseMain {
			continue
		}
		entry := LogEntry{
			Type:  string(msg.Type()),
			Phase: msg.Phase().String(),
			Value: msg.Value(),
			Crit:  msg.BoolExtra(chain.ExtraCrit),
			Dodge: msg.BoolExtra(chain.ExtraDodge),
		}
		if s, ok := msg.Sender().(*entity.Character); ok {
			entry.Sender = s.Name()
		}
		if r, ok := msg.Receiver().(*entity.Character); ok {
			entry.Receiver = r.Name()
		}
		snap.Log = append(snap.Log, entry)
	}
	return snap
}
