package battle

import (
	"fmt"

	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/ident"
)

// TeamMember is the minimal description the host supplies per creature at
// construction time (spec.md §3 "Lifecycles": "creatures are created once
// at construction and never destroyed").
type TeamMember struct {
	Species  string
	Nickname string
	Level    int
	Gender   ident.Gender
	Shiny    bool
	Nature   ident.Nature
	IVs      ident.StatTable
	EVs      ident.StatTable
	Ability  string
	Item     string
	Moves    []string // move names, resolved against DataStore
}

// NewBattle constructs a Battle from two teams and a resolved format
// (spec.md §3 "Lifecycles"). Team validation (legality of movesets,
// species clauses, etc.) is out of scope and assumed already performed by
// the host.
func NewBattle(seed int64, playerAIDs, playerBIDs []string, teamA, teamB []TeamMember, data datastore.DataStore, cfg config.BattleConfig, limits config.ResourceLimits) (*Battle, error) {
	b := &Battle{
		RNG:       NewRNG(seed),
		Log:       NewLogSink(limits.MaxEventLogEntries),
		Handles:   ident.NewAllocator(),
		Data:      data,
		Config:    cfg,
		Limits:    limits,
		creatures: map[ident.Handle]*Creature{},
		moves:     map[ident.Handle]*ActiveMove{},
		effects:   map[ident.Handle]*Effect{},
		registry:  NewRegistry(),
	}
	b.Dispatcher = NewDispatcher(b.registry, b, limits.MaxDispatchDepth)
	b.Dispatcher.ErrorHook = func(effect string, kind EventKind, err error) {
		b.Log.Emit(formatEvent("internalerror", kv("effect", effect), kv("event", string(kind)), kv("detail", err.Error())))
		if b.RuntimeErrorHook != nil {
			b.RuntimeErrorHook(effect, kind, err)
		}
	}

	maxSlots := cfg.BattleType.ActiveSlots()
	b.Field = &Field{
		MaxSideLength: maxSlots,
		Conditions:    map[string]*FieldCondition{},
		Sides: [2]*Side{
			{Index: 0, Active: make([]ident.Handle, maxSlots), Conditions: map[string]*SideCondition{}},
			{Index: 1, Active: make([]ident.Handle, maxSlots), Conditions: map[string]*SideCondition{}},
		},
	}
	for i := range b.Field.Sides[0].Active {
		b.Field.Sides[0].Active[i] = ident.InvalidHandle
		b.Field.Sides[1].Active[i] = ident.InvalidHandle
	}

	if err := b.buildSide(0, playerAIDs, teamA); err != nil {
		return nil, err
	}
	if err := b.buildSide(1, playerBIDs, teamB); err != nil {
		return nil, err
	}

	b.Log.Emit(formatEvent("info", kv("battletype", b.Config.BattleType.String())))
	for _, side := range b.Field.Sides {
		b.Log.Emit(formatEvent("side", kv("id", fmt.Sprint(side.Index))))
		for _, p := range side.Players {
			b.Log.Emit(formatEvent("player", kv("id", p.ID), kv("side", fmt.Sprint(side.Index))))
			b.Log.Emit(formatEvent("teamsize", kv("player", p.ID), kv("size", fmt.Sprint(p.TeamSize))))
		}
	}
	return b, nil
}

func (b *Battle) buildSide(sideIdx int, playerIDs []string, team []TeamMember) error {
	side := b.Field.Sides[sideIdx]
	player := &Player{ID: playerIDs[0], TeamSize: len(team)}
	side.Players = append(side.Players, player)

	for _, tm := range team {
		c, err := b.newCreature(sideIdx, 0, tm)
		if err != nil {
			return NewStaticError("team construction", err)
		}
		player.Team = append(player.Team, c.Handle)
	}
	return nil
}

func (b *Battle) newCreature(sideIdx, playerIdx int, tm TeamMember) (*Creature, error) {
	sp, ok := b.Data.GetSpeciesByName(tm.Species)
	if !ok {
		return nil, fmt.Errorf("unknown species %q", tm.Species)
	}
	species := sp
	h := b.Handles.Next()
	c := &Creature{
		Handle:                h,
		PlayerIdx:             playerIdx,
		SideIdx:               sideIdx,
		BaseSpecies:           &species,
		CurrentSpecies:        &species,
		Nickname:              tm.Nickname,
		Gender:                tm.Gender,
		Shiny:                 tm.Shiny,
		Nature:                tm.Nature,
		BaseStats:             species.BaseStats,
		IVs:                   tm.IVs,
		EVs:                   tm.EVs,
		Level:                 tm.Level,
		ActivePosition:        -1,
		AbilityID:             tm.Ability,
		AbilityState:          EffectState{},
		ItemID:                tm.Item,
		ItemState:             EffectState{},
		StatusState:           EffectState{},
		Volatiles:             map[string]EffectState{},
		Boosts:                ident.BoostTable{},
		FoesFoughtWhileActive: map[ident.Handle]bool{},
	}
	c.Stats = computeStats(c)
	c.MaxHP = c.Stats[ident.HP]
	c.HP = c.MaxHP

	for _, name := range tm.Moves {
		mv, ok := b.Data.GetMoveByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown move %q", name)
		}
		c.BaseMoves = append(c.BaseMoves, MoveSlot{
			ID: mv.ID, Name: mv.Name, PP: mv.PP, MaxPP: mv.PP, Target: mv.Target,
		})
	}
	c.Moves = append([]MoveSlot(nil), c.BaseMoves...)

	b.creatures[h] = c
	if err := b.RegisterAbility(h, c.AbilityID); err != nil {
		return nil, err
	}
	if err := b.RegisterItem(h, c.ItemID); err != nil {
		return nil, err
	}
	return c, nil
}

// computeStats derives battle stats from base stats, IVs, EVs, level and
// nature — the standard mainline formula, grounded on
// original_source/battler/src/battle/mon.rs's stat calculation.
func computeStats(c *Creature) ident.StatTable {
	var out ident.StatTable
	boosted, hindered := c.Nature.Modifiers()

	hpBase, hpIV, hpEV := c.BaseStats[ident.HP], c.IVs[ident.HP], c.EVs[ident.HP]
	out[ident.HP] = ((2*hpBase+hpIV+hpEV/4)*c.Level)/100 + c.Level + 10

	for _, stat := range ident.BoostableStats {
		base := c.BaseStats[stat]
		iv := c.IVs[stat]
		ev := c.EVs[stat]
		raw := ((2*base+iv+ev/4)*c.Level)/100 + 5
		mult := 100
		if stat == boosted {
			mult = 110
		} else if stat == hindered {
			mult = 90
		}
		out[stat] = raw * mult / 100
	}
	return out
}

// newEffect allocates an Effect record behind a fresh handle.
func (b *Battle) newEffect(id, name string, kind EffectKind) *Effect {
	h := b.Handles.Next()
	eff := &Effect{Handle: h, ID: id, Name: name, Kind: kind}
	b.effects[h] = eff
	return eff
}

func (b *Battle) releaseEffect(h ident.Handle) { delete(b.effects, h) }

// ValidateInvariants checks the subset of spec.md §3's invariants that are
// cheap to verify after a mutation; violations are fatal
// (EngineInvariantError), matching the propagation policy of spec.md §7.
func (b *Battle) ValidateInvariants() error {
	for h, c := range b.creatures {
		if c.HP < 0 || c.HP > c.MaxHP {
			return &EngineInvariantError{Invariant: "0 <= hp <= max_hp", Detail: fmt.Sprintf("creature %v has hp %d/%d", h, c.HP, c.MaxHP)}
		}
		if (c.HP == 0) != c.Fainted {
			return &EngineInvariantError{Invariant: "hp == 0 <=> fainted", Detail: fmt.Sprintf("creature %v hp=%d fainted=%v", h, c.HP, c.Fainted)}
		}
		for _, v := range c.Boosts {
			if v < -6 || v > 6 {
				return &EngineInvariantError{Invariant: "boost in [-6, 6]", Detail: fmt.Sprintf("creature %v has out-of-range boost", h)}
			}
		}
		for _, slot := range c.Moves {
			if slot.PP > slot.MaxPP {
				return &EngineInvariantError{Invariant: "pp <= max_pp", Detail: fmt.Sprintf("creature %v move %s", h, slot.Name)}
			}
		}
		if c.ActivePosition >= 0 && c.ActivePosition >= b.Field.MaxSideLength {
			return &EngineInvariantError{Invariant: "active_position < max_side_length", Detail: fmt.Sprintf("creature %v position %d", h, c.ActivePosition)}
		}
	}
	return nil
}
