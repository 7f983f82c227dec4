// Package projection implements the Battle State Projection (spec.md
// §4.1): the partial-observation view of a battle usable by spectators
// and the opposing side, unifying an authoritative (full data available)
// and an observed (derived from discovery events) realization behind one
// Mon interface. Geometry is grounded on
// original_source/battler-state/src/state_util.rs.
package projection

import (
	"fmt"

	"battlecore/internal/ident"
)

// Health is an opaque (current, max) ratio; the zero value renders as
// "unknown" rather than 0/0.
type Health struct {
	Current, Max int
	Known        bool
}

// OptString distinguishes "unknown" (nil) from "confirmed none" ("").
type OptString struct {
	Value *string
}

func Unknown() OptString         { return OptString{} }
func Known(s string) OptString   { return OptString{Value: &s} }
func (o OptString) IsKnown() bool { return o.Value != nil }

// Mon is the unified read-only view spectators and opponents query
// (spec.md §4.1 "Public operations on a Mon reference").
type Mon interface {
	Side() int
	Player() string
	ActivePosition() (int, bool) // ok=false when inactive
	Name() string
	Species() OptString
	Level() (int, bool)
	Health() (Health, bool)
	Ability() OptString
	Item() OptString // nil => unknown, "" => confirmed none
	Moves() []string
	Gender() ident.Gender
	Shiny() (bool, bool)
	Nature() (ident.Nature, bool) // only ever "ok" when authoritative
	Boosts() ident.BoostTable
	Status() string
	Types() []ident.Type
	Conditions() []string
	SideConditions() []string
	HiddenPowerType() (ident.Type, bool)

	// IsAuthoritative reports whether this Mon is the full server-side
	// view (true) or an observer's partial reconstruction (false).
	IsAuthoritative() bool
}

// Source is the minimal data a projection needs from the authoritative
// creature record; the battle package's *Creature satisfies it without
// this package importing battle (avoiding an import cycle, matching the
// Host-interface pattern used between fxlang and battle).
type Source interface {
	SideIndex() int
	PlayerID() string
	Pos() (int, bool)
	DisplayName() string
	SpeciesName() string
	CreatureLevel() int
	HP() (int, int)
	AbilityName() string
	ItemName() (string, bool) // ok=false => unknown
	MoveNames() []string
	CreatureGender() ident.Gender
	IsShiny() bool
	CreatureNature() ident.Nature
	CreatureBoosts() ident.BoostTable
	StatusName() string
	CreatureTypes() []ident.Type
	ActiveConditionIDs() []string
	SideConditionIDs() []string
	HiddenPower() ident.Type
	MaxSideLength() int
}

// Authoritative wraps a full Source with every field visible.
type Authoritative struct{ Src Source }

func NewAuthoritative(src Source) Authoritative { return Authoritative{Src: src} }

func (a Authoritative) Side() int   { return a.Src.SideIndex() }
func (a Authoritative) Player() string { return a.Src.PlayerID() }
func (a Authoritative) ActivePosition() (int, bool) { return a.Src.Pos() }
func (a Authoritative) Name() string { return a.Src.DisplayName() }
func (a Authoritative) Species() OptString { return Known(a.Src.SpeciesName()) }
func (a Authoritative) Level() (int, bool) { return a.Src.CreatureLevel(), true }
func (a Authoritative) Health() (Health, bool) {
	cur, max := a.Src.HP()
	return Health{Current: cur, Max: max, Known: true}, true
}
func (a Authoritative) Ability() OptString { return Known(a.Src.AbilityName()) }
func (a Authoritative) Item() OptString {
	name, ok := a.Src.ItemName()
	if !ok {
		return Unknown()
	}
	return Known(name)
}
func (a Authoritative) Moves() []string { return a.Src.MoveNames() }
func (a Authoritative) Gender() ident.Gender { return a.Src.CreatureGender() }
func (a Authoritative) Shiny() (bool, bool)  { return a.Src.IsShiny(), true }
func (a Authoritative) Nature() (ident.Nature, bool) { return a.Src.CreatureNature(), true }
func (a Authoritative) Boosts() ident.BoostTable     { return a.Src.CreatureBoosts() }
func (a Authoritative) Status() string               { return a.Src.StatusName() }
func (a Authoritative) Types() []ident.Type          { return a.Src.CreatureTypes() }
func (a Authoritative) Conditions() []string         { return a.Src.ActiveConditionIDs() }
func (a Authoritative) SideConditions() []string     { return a.Src.SideConditionIDs() }
func (a Authoritative) HiddenPowerType() (ident.Type, bool) { return a.Src.HiddenPower(), true }
func (a Authoritative) IsAuthoritative() bool                { return true }

// Observed is an opponent/spectator's partial reconstruction, built only
// from discovery events (a switch-in reveals species/level/gender; a
// move use reveals that move; an ability activation reveals the
// ability). Unrevealed fields report "unknown" rather than guessing.
type Observed struct {
	side, playerSlot int
	player           string
	pos              int
	active           bool
	name             string
	species          OptString
	level            int
	levelKnown       bool
	health           Health
	ability          OptString
	item             OptString
	itemKnownNone    bool
	moves            map[string]bool
	gender           ident.Gender
	shiny            bool
	shinyKnown       bool
	boosts           ident.BoostTable
	status           string
	types            []ident.Type
	conditions       []string
	sideConditions   []string
}

// NewObserved starts an empty observed record for a creature known only
// by its side/player/position.
func NewObserved(side int, player string, pos int) *Observed {
	return &Observed{side: side, player: player, pos: pos, active: true, boosts: ident.BoostTable{}, moves: map[string]bool{}}
}

// RevealSwitchIn records what a `switch` log line discloses.
func (o *Observed) RevealSwitchIn(name, species string, level int, gender ident.Gender, health Health) {
	o.name = name
	o.species = Known(species)
	o.level = level
	o.levelKnown = true
	o.gender = gender
	o.health = health
}

// RevealMove records that a move has now been seen used.
func (o *Observed) RevealMove(name string) { o.moves[name] = true }

// RevealAbility records an ability activation.
func (o *Observed) RevealAbility(name string) { o.ability = Known(name) }

// RevealItem records an item use/activation, or its confirmed absence.
func (o *Observed) RevealItem(name string) { o.item = Known(name) }

func (o *Observed) Side() int            { return o.side }
func (o *Observed) Player() string       { return o.player }
func (o *Observed) ActivePosition() (int, bool) {
	if !o.active {
		return 0, false
	}
	return o.pos, true
}
func (o *Observed) Name() string    { return o.name }
func (o *Observed) Species() OptString { return o.species }
func (o *Observed) Level() (int, bool) { return o.level, o.levelKnown }
func (o *Observed) Health() (Health, bool) { return o.health, o.health.Known }
func (o *Observed) Ability() OptString     { return o.ability }
func (o *Observed) Item() OptString        { return o.item }
func (o *Observed) Moves() []string {
	out := make([]string, 0, len(o.moves))
	for m := range o.moves {
		out = append(out, m)
	}
	return out
}
func (o *Observed) Gender() ident.Gender { return o.gender }
func (o *Observed) Shiny() (bool, bool)  { return o.shiny, o.shinyKnown }

// Nature is never known to an observer (spec.md §4.1: "only when
// authoritative").
func (o *Observed) Nature() (ident.Nature, bool)            { return 0, false }
func (o *Observed) Boosts() ident.BoostTable                 { return o.boosts }
func (o *Observed) Status() string                           { return o.status }
func (o *Observed) Types() []ident.Type                      { return o.types }
func (o *Observed) Conditions() []string                     { return o.conditions }
func (o *Observed) SideConditions() []string                 { return o.sideConditions }
func (o *Observed) HiddenPowerType() (ident.Type, bool)       { return ident.TypeNone, false }
func (o *Observed) IsAuthoritative() bool                     { return false }

// RelativePosition implements spec.md §4.1's geometry formula:
// `|self.pos - (max_side_length - other.pos - 1)| + 1` for foes, negative
// for allies, 0 for self. ok is true whenever err is nil.
func RelativePosition(selfPos, otherPos, maxSideLength int, sameSide, isSelf bool) (int, bool, error) {
	if otherPos >= maxSideLength {
		return 0, false, fmt.Errorf("projection: other position %d >= max_side_length %d", otherPos, maxSideLength)
	}
	if isSelf {
		return 0, true, nil
	}
	if sameSide {
		diff := selfPos - otherPos
		if diff == 0 {
			return 0, true, nil
		}
		return -abs(diff), true, nil
	}
	flipped := maxSideLength - otherPos - 1
	return abs(selfPos-flipped) + 1, true, nil
}

// IsAdjacent reports whether two positions are within reach-1 of each
// other, per the format's adjacency_reach option (spec.md §4.1/§6).
func IsAdjacent(selfPos, otherPos, maxSideLength, reach int, sameSide bool) (bool, error) {
	rel, ok, err := RelativePosition(selfPos, otherPos, maxSideLength, sameSide, false)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if rel < 0 {
		rel = -rel
	}
	return rel <= reach-1, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// IdentityKey is the fallback tuple used by IsSame when handle equality
// is unavailable (two Observed views of the same creature, e.g.).
type IdentityKey struct {
	Side, PlayerSlot           int
	Name, Species              string
	Gender                     ident.Gender
	Shiny                      bool
	Level                      int
	Status                     string
}

// IsSame implements spec.md §4.1's identity fallback heuristic.
func IsSame(a, b Mon) bool {
	if a.Side() != b.Side() || a.Player() != b.Player() {
		return false
	}
	aLvl, _ := a.Level()
	bLvl, _ := b.Level()
	aShiny, _ := a.Shiny()
	bShiny, _ := b.Shiny()
	return a.Name() == b.Name() && sameOptString(a.Species(), b.Species()) &&
		a.Gender() == b.Gender() && aShiny == bShiny && aLvl == bLvl && a.Status() == b.Status()
}

func sameOptString(a, b OptString) bool {
	if a.Value == nil || b.Value == nil {
		return a.Value == nil && b.Value == nil
	}
	return *a.Value == *b.Value
}
