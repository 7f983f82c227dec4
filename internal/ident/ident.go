// Package ident provides the stable identifier and value primitives shared
// across the battle engine: opaque handles into the battle's arenas,
// rational fractions, stat/boost tables, and the small closed enums for
// types, genders, and natures.
package ident

import "fmt"

// Handle is an opaque, stable index into one of the battle's arenas
// (creatures, active moves, effect states). A Handle is valid for the
// lifetime of the Battle that issued it; it is never reused once
// allocated, even if the entity it names "dies" in game terms.
type Handle uint32

// InvalidHandle is never returned by an allocator and never valid.
const InvalidHandle Handle = 0

// Allocator hands out monotonically increasing handles. It is owned by a
// single Battle; there is no global allocator.
type Allocator struct {
	next Handle
}

// NewAllocator returns an allocator whose first issued handle is 1.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Next returns the next unused handle.
func (a *Allocator) Next() Handle {
	h := a.next
	a.next++
	return h
}

// Fraction is an exact rational number used anywhere the source format
// would lose precision to floating point (damage multipliers, chances,
// health ratios).
type Fraction struct {
	Num, Den int64
}

// F constructs a Fraction, panicking on a zero denominator since that
// indicates a programming error, not bad input.
func F(num, den int64) Fraction {
	if den == 0 {
		panic("ident: fraction with zero denominator")
	}
	return Fraction{Num: num, Den: den}.normalize()
}

// Whole constructs a Fraction equal to an integer.
func Whole(n int64) Fraction { return Fraction{Num: n, Den: 1} }

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func (f Fraction) normalize() Fraction {
	if f.Den < 0 {
		f.Num, f.Den = -f.Num, -f.Den
	}
	g := gcd(f.Num, f.Den)
	return Fraction{Num: f.Num / g, Den: f.Den / g}
}

// Mul returns f * g.
func (f Fraction) Mul(g Fraction) Fraction {
	return F(f.Num*g.Num, f.Den*g.Den)
}

// Add returns f + g.
func (f Fraction) Add(g Fraction) Fraction {
	return F(f.Num*g.Den+g.Num*f.Den, f.Den*g.Den)
}

// Sub returns f - g.
func (f Fraction) Sub(g Fraction) Fraction {
	return F(f.Num*g.Den-g.Num*f.Den, f.Den*g.Den)
}

// Cmp returns -1, 0, or 1 as f is less than, equal to, or greater than g.
func (f Fraction) Cmp(g Fraction) int {
	lhs := f.Num * g.Den
	rhs := g.Num * f.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

// Float64 converts to a float64 for display or legacy formulas.
func (f Fraction) Float64() float64 {
	return float64(f.Num) / float64(f.Den)
}

// RoundUp returns ceil(f) as an integer, used for HP-percentage display
// that must never show 100 for a damaged creature (spec.md §6).
func (f Fraction) RoundUp() int64 {
	q := f.Num / f.Den
	if f.Num%f.Den != 0 {
		q++
	}
	return q
}

func (f Fraction) String() string {
	if f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Stat identifies one of a creature's six battle stats.
type Stat int

const (
	HP Stat = iota
	Attack
	Defense
	SpAttack
	SpDefense
	Speed
)

var statNames = [...]string{"hp", "atk", "def", "spa", "spd", "spe"}

func (s Stat) String() string {
	if int(s) < 0 || int(s) >= len(statNames) {
		return "unknown"
	}
	return statNames[s]
}

// BoostableStats excludes HP, which cannot be boosted.
var BoostableStats = [...]Stat{Attack, Defense, SpAttack, SpDefense, Speed}

// StatTable holds one value per stat (base stats, computed stats, EVs, IVs).
type StatTable [6]int

// BoostTable holds a boost stage in [-6, 6] per boostable stat.
type BoostTable map[Stat]int

// Get returns the boost for a stat, defaulting to 0.
func (b BoostTable) Get(s Stat) int { return b[s] }

// Clamp returns n clamped into [-6, 6], per the invariant in spec.md §3.
func Clamp(n int) int {
	if n > 6 {
		return 6
	}
	if n < -6 {
		return -6
	}
	return n
}

// Set clamps and stores a boost, reporting whether the value saturated
// (spec.md §8 "Boundary behaviors": boosts at +-6 emit a max/min event).
func (b BoostTable) Set(s Stat, n int) (saturated bool) {
	clamped := Clamp(n)
	saturated = clamped != n
	b[s] = clamped
	return saturated
}

// BoostMultiplier returns the stage multiplier as a Fraction. Stages use
// the mainline formula: positive stages multiply by (2+n)/2, negative
// stages by 2/(2-n). Accuracy/evasion stages use (3+n)/3 and 3/(3-n) by
// convention of the caller.
func BoostMultiplier(stage int) Fraction {
	stage = Clamp(stage)
	if stage >= 0 {
		return F(int64(2+stage), 2)
	}
	return F(2, int64(2-stage))
}

// Type identifies one of a creature's or move's elemental types.
type Type int

const (
	TypeNone Type = iota
	Normal
	Fire
	Water
	Electric
	Grass
	Ice
	Fighting
	Poison
	Ground
	Flying
	Psychic
	Bug
	Rock
	Ghost
	Dragon
	Dark
	Steel
	Fairy
)

var typeNames = [...]string{
	"", "normal", "fire", "water", "electric", "grass", "ice", "fighting",
	"poison", "ground", "flying", "psychic", "bug", "rock", "ghost",
	"dragon", "dark", "steel", "fairy",
}

func (t Type) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Gender is a creature's battle gender, affecting a small number of moves
// and abilities (Attract, Cute Charm).
type Gender int

const (
	GenderUnknown Gender = iota
	Male
	Female
	Genderless
)

// Nature influences which stats a creature's nature boosts/hinders.
// Only meaningful when the Mon view is authoritative (spec.md §4.1).
type Nature int

const (
	Hardy Nature = iota
	Lonely
	Brave
	Adamant
	Naughty
	Bold
	Docile
	Relaxed
	Impish
	Lax
	Timid
	Hasty
	Serious
	Jolly
	Naive
	Modest
	Mild
	Quiet
	Bashful
	Rash
	Calm
	Gentle
	Sassy
	Careful
	Quirky
)

// natureMods maps a nature to (boosted stat, hindered stat); Stat(-1)
// means neutral (no effect on either side).
var natureMods = map[Nature][2]Stat{
	Lonely:  {Attack, Defense},
	Brave:   {Attack, Speed},
	Adamant: {Attack, SpAttack},
	Naughty: {Attack, SpDefense},
	Bold:    {Defense, Attack},
	Relaxed: {Defense, Speed},
	Impish:  {Defense, SpAttack},
	Lax:     {Defense, SpDefense},
	Timid:   {Speed, Attack},
	Hasty:   {Speed, Defense},
	Jolly:   {Speed, SpAttack},
	Naive:   {Speed, SpDefense},
	Modest:  {SpAttack, Attack},
	Mild:    {SpAttack, Defense},
	Quiet:   {SpAttack, Speed},
	Rash:    {SpAttack, SpDefense},
	Calm:    {SpDefense, Attack},
	Gentle:  {SpDefense, Defense},
	Sassy:   {SpDefense, Speed},
	Careful: {SpDefense, SpAttack},
}

// Modifiers returns the (boosted, hindered) stat for a nature, or
// (-1, -1) for a neutral nature (Hardy, Docile, Serious, Bashful, Quirky).
func (n Nature) Modifiers() (boosted, hindered Stat) {
	if m, ok := natureMods[n]; ok {
		return m[0], m[1]
	}
	return Stat(-1), Stat(-1)
}
