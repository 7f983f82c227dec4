package battle

import (
	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// MoveSlot is one of a creature's learned moves, tracked both as the
// permanent (base) loadout restored on switch-out and as the mutable
// in-battle copy (pp, disabled, etc).
type MoveSlot struct {
	ID        string
	Name      string
	PP        int
	MaxPP     int
	Target    datastore.MoveTarget
	Used      bool
	Disabled  bool
	Simulated bool // a slot the engine fabricated (e.g. Transform copy)
}

// EffectState is the mutable scratch space an active effect (status,
// volatile, ability, item, side/field condition) keeps between dispatches.
// fxlang programs read and write into it as a generic key/value object.
type EffectState map[string]fxlang.Value

// Status is a persistent status condition id (burn, poison, sleep, ...).
type Status string

const (
	StatusNone      Status = ""
	StatusBurn      Status = "brn"
	StatusPoison    Status = "psn"
	StatusBadPoison Status = "tox"
	StatusSleep     Status = "slp"
	StatusParalysis Status = "par"
	StatusFreeze    Status = "frz"
)

// MoveOutcome records what happened to a creature on the current action,
// consulted by residual/post-move hooks.
type MoveOutcome int

const (
	OutcomeNone MoveOutcome = iota
	OutcomeHit
	OutcomeMissed
	OutcomeFailed
	OutcomeSuperEffective
	OutcomeResisted
	OutcomeImmune
)

// Creature is the central entity of the data model (spec.md §3).
type Creature struct {
	Handle ident.Handle

	PlayerIdx int
	SideIdx   int

	BaseSpecies    *datastore.Species
	CurrentSpecies *datastore.Species
	Nickname       string
	Gender         ident.Gender
	Shiny          bool
	Nature         ident.Nature

	BaseStats    ident.StatTable
	Stats        ident.StatTable
	Boosts       ident.BoostTable
	IVs          ident.StatTable
	EVs          ident.StatTable
	Level        int
	HiddenPowerType ident.Type

	HP              int
	MaxHP           int
	Active          bool
	ActivePosition  int // -1 when inactive
	ActiveTurns     int
	NeedsSwitch     bool
	ForceSwitch     bool
	Trapped         bool
	Fainted         bool
	Transformed     bool
	Dynamaxed       bool
	TeraType        ident.Type
	IsTerastallized bool

	BaseMoves []MoveSlot
	Moves     []MoveSlot

	AbilityID    string
	AbilityState EffectState
	ItemID       string // "" means "holds nothing"; distinct from unknown at the projection layer
	ItemState    EffectState

	Status      Status
	StatusState EffectState

	Volatiles map[string]EffectState

	LastMoveSelected string
	LastMoveUsed     string
	LastTargetLoc    int
	MoveFailedThisTurn bool
	DamageThisTurn   int
	Outcome          MoveOutcome
	FoesFoughtWhileActive map[ident.Handle]bool
}

// EffectiveTypes returns the creature's current type set, honoring
// Terastallization and forme-change substitutions over the species data.
func (c *Creature) EffectiveTypes() []ident.Type {
	if c.IsTerastallized && c.TeraType != ident.TypeNone {
		return []ident.Type{c.TeraType}
	}
	return c.CurrentSpecies.Types
}

// Player owns a team of creatures (spec.md §3 "Player").
type Player struct {
	ID             string
	TeamSize       int
	Team           []ident.Handle
	LastChoice     *Choice
	LastRequest    *Request
	FaintedLastTurn bool
	PendingLearn   *PendingLearn
}

// PendingLearn is the learn-move offer outstanding for a player, set by the
// host before issuing a RequestLearnMove (spec.md §4.6 "learn-move"); the
// host decides the triggering creature/move (level-up, TM use, etc.), which
// is out of scope here (spec.md §1).
type PendingLearn struct {
	Creature ident.Handle
	MoveID   string
}

// SideCondition is a side-scoped volatile (spikes, light screen, ...).
type SideCondition struct {
	ID             string
	TurnsRemaining int
	Layers         int
	State          EffectState
	Handle         ident.Handle // registry owner for this condition's programs
}

// Side is one of the two teams on the field.
type Side struct {
	Index   int
	Players []*Player
	Active  []ident.Handle // active[pos] -> handle, InvalidHandle if empty
	Conditions map[string]*SideCondition
}

// FieldCondition is weather/terrain: optional, timed, with effect state.
type FieldCondition struct {
	ID             string
	TurnsRemaining int // -1 = indefinite
	State          EffectState
	Handle         ident.Handle // registry owner for this condition's programs
}

// Field holds the two sides and field-wide conditions.
type Field struct {
	Sides         [2]*Side
	Weather       *FieldCondition
	Terrain       *FieldCondition
	Conditions    map[string]*FieldCondition
	MaxSideLength int
}

// FaintQueue buffers creatures that reached 0 HP until the next flush
// point in the turn loop (spec.md §4.4 step 4/5).
type FaintQueue struct {
	pending []ident.Handle
}

func (q *FaintQueue) Push(h ident.Handle) { q.pending = append(q.pending, h) }
func (q *FaintQueue) Drain() []ident.Handle {
	out := q.pending
	q.pending = nil
	return out
}

// Battle is the singleton per-match object (spec.md §3 "Battle").
type Battle struct {
	Field      *Field
	Turn       int
	RNG        *RNG
	Faints     FaintQueue
	Log        *LogSink
	Handles    *ident.Allocator
	Data       datastore.DataStore
	Config     config.BattleConfig
	Limits     config.ResourceLimits

	creatures map[ident.Handle]*Creature
	moves     map[ident.Handle]*ActiveMove
	effects   map[ident.Handle]*Effect

	Dispatcher *Dispatcher
	registry   *Registry

	// RuntimeErrorHook, if set, is notified alongside the dispatcher's own
	// internalerror log line — the host's observability layer uses this
	// to count EffectRuntimeError occurrences without battle depending on
	// any metrics library.
	RuntimeErrorHook func(effect string, kind EventKind, err error)

	ended bool
	winner        int // -1 = undecided, -2 = tie, else side index
}

// EffectKind classifies an Effect handle for the `is_ability`/`is_move`
// member-access predicates (spec.md §4.2 "On an effect").
type EffectKind int

const (
	EffectKindAbility EffectKind = iota
	EffectKindItem
	EffectKindMove
	EffectKindCondition
)

// Effect is the arena-allocated record behind a fxlang KindEffect handle:
// whichever ability, item, move, or condition is "the effect currently
// running" for a given dispatch.
type Effect struct {
	Handle       ident.Handle
	ID           string
	Name         string
	Kind         EffectKind
	SourceEffect string // non-empty when this effect was itself triggered by another
	MoveTarget   string
}

// ActiveMove is a transient record describing a move as it is used
// (spec.md §3 "Ownership"): arena-allocated, referenced by handle, so
// fxlang programs can hold a stable reference across nested dispatch.
type ActiveMove struct {
	Handle   ident.Handle
	Move     *datastore.Move
	UserH    ident.Handle
	BasePower int
	Category datastore.MoveCategory
	Type     ident.Type
	HitCount int
	TotalDamageDealt int
}

// GetCreature resolves a handle or returns an EngineInvariantError.
func (b *Battle) GetCreature(h ident.Handle) (*Creature, error) {
	c, ok := b.creatures[h]
	if !ok {
		return nil, &EngineInvariantError{Invariant: "handle validity", Detail: "unknown creature handle"}
	}
	return c, nil
}

// GetActiveMove resolves an active-move handle.
func (b *Battle) GetActiveMove(h ident.Handle) (*ActiveMove, error) {
	m, ok := b.moves[h]
	if !ok {
		return nil, &EngineInvariantError{Invariant: "handle validity", Detail: "unknown active-move handle"}
	}
	return m, nil
}

func (b *Battle) newActiveMove(mv *datastore.Move, user ident.Handle) *ActiveMove {
	h := b.Handles.Next()
	am := &ActiveMove{
		Handle:    h,
		Move:      mv,
		UserH:     user,
		BasePower: mv.BasePower,
		Category:  mv.Category,
		Type:      mv.Type,
	}
	b.moves[h] = am
	return am
}

func (b *Battle) releaseActiveMove(h ident.Handle) { delete(b.moves, h) }

// ActiveSideSlot returns the active creature handle at a side/position,
// or InvalidHandle if the slot is empty.
func (f *Field) ActiveSideSlot(side, pos int) ident.Handle {
	if side < 0 || side > 1 || pos < 0 || pos >= len(f.Sides[side].Active) {
		return ident.InvalidHandle
	}
	return f.Sides[side].Active[pos]
}
