package battle

import "battlecore/internal/ident"

// CreatureSource adapts a battle Creature to projection.Source, keeping
// the projection package free of any dependency on battle internals
// (mirrors the fxlang.Host boundary: battle is the only package that
// knows both shapes).
type CreatureSource struct {
	B *Battle
	C *Creature
}

func (s CreatureSource) SideIndex() int { return s.C.SideIdx }

func (s CreatureSource) PlayerID() string {
	side := s.B.Field.Sides[s.C.SideIdx]
	if s.C.PlayerIdx >= 0 && s.C.PlayerIdx < len(side.Players) {
		return side.Players[s.C.PlayerIdx].ID
	}
	return ""
}

func (s CreatureSource) Pos() (int, bool) {
	if !s.C.Active {
		return 0, false
	}
	return s.C.ActivePosition, true
}

func (s CreatureSource) DisplayName() string  { return s.C.Nickname }
func (s CreatureSource) SpeciesName() string  { return s.C.CurrentSpecies.Name }
func (s CreatureSource) CreatureLevel() int   { return s.C.Level }
func (s CreatureSource) HP() (int, int)       { return s.C.HP, s.C.MaxHP }
func (s CreatureSource) AbilityName() string  { return s.C.AbilityID }

func (s CreatureSource) ItemName() (string, bool) {
	// The engine always knows a creature's own item; "unknown" only
	// applies to an opposing observer's projection, constructed instead
	// from projection.Observed, never from this adapter directly.
	return s.C.ItemID, true
}

func (s CreatureSource) MoveNames() []string {
	out := make([]string, 0, len(s.C.Moves))
	for _, m := range s.C.Moves {
		out = append(out, m.Name)
	}
	return out
}

func (s CreatureSource) CreatureGender() ident.Gender  { return s.C.Gender }
func (s CreatureSource) IsShiny() bool                 { return s.C.Shiny }
func (s CreatureSource) CreatureNature() ident.Nature  { return s.C.Nature }
func (s CreatureSource) CreatureBoosts() ident.BoostTable { return s.C.Boosts }
func (s CreatureSource) StatusName() string            { return string(s.C.Status) }
func (s CreatureSource) CreatureTypes() []ident.Type   { return s.C.EffectiveTypes() }

func (s CreatureSource) ActiveConditionIDs() []string {
	out := make([]string, 0, len(s.C.Volatiles))
	for id := range s.C.Volatiles {
		out = append(out, id)
	}
	return out
}

func (s CreatureSource) SideConditionIDs() []string {
	side := s.B.Field.Sides[s.C.SideIdx]
	out := make([]string, 0, len(side.Conditions))
	for id := range side.Conditions {
		out = append(out, id)
	}
	return out
}

func (s CreatureSource) HiddenPower() ident.Type { return s.C.HiddenPowerType }
func (s CreatureSource) MaxSideLength() int       { return s.B.Field.MaxSideLength }
