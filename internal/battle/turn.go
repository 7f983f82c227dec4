package battle

import (
	"errors"
	"fmt"
	"sort"

	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// RunTurn executes one full turn (spec.md §4.4): orders the supplied
// Actions, executes each in turn, runs residual hooks, then advances turn
// state. actions are already validated (the host turns choices into
// Actions with ValidateChoice across the Request/response boundary); their
// order in the slice only serves as the tie-break input. An
// EngineInvariantError is preceded in the log by an internalerror line.
func (b *Battle) RunTurn(actions []*Action) (err error) {
	defer func() {
		var inv *EngineInvariantError
		if errors.As(err, &inv) {
			b.Log.Emit(formatEvent("internalerror", kv("invariant", inv.Invariant), kv("detail", inv.Detail)))
		}
	}()
	b.Turn++
	b.Log.Emit(formatEvent("turn", kv("turn", fmt.Sprint(b.Turn))))

	ordered := b.orderActions(actions)

	for _, act := range ordered {
		if act.Kind == ActionPass {
			continue
		}
		if act.Kind == ActionMove {
			user, err := b.GetCreature(act.User)
			if err != nil {
				return err
			}
			if user.Fainted {
				continue // fainted earlier this turn; skip (spec.md §4.4 step 4)
			}
		}
		if err := b.executeAction(act); err != nil {
			return err
		}
		if err := b.flushFaints(); err != nil {
			return err
		}
	}

	if err := b.runResidual(); err != nil {
		return err
	}
	if err := b.flushFaints(); err != nil {
		return err
	}

	return b.endOfTurn()
}

// orderActions implements spec.md §4.4 step 3: switches before attacks,
// attacks sorted by (priority desc, speed desc, sub-order asc).
func (b *Battle) orderActions(actions []*Action) []*Action {
	var switches, others []*Action
	for i, act := range actions {
		act.SubOrder = i
		if act.Kind == ActionMove {
			mv, ok := b.Data.GetMoveByName(act.MoveID)
			if ok {
				act.Priority = mv.Priority
			}
			act.EffectiveSpeed = b.effectiveSpeed(act.User)
			others = append(others, act)
		} else if act.Kind == ActionSwitch {
			switches = append(switches, act)
		} else {
			others = append(others, act)
		}
	}
	if b.Config.SpeedSortTieResolution == config.Random {
		b.RNG.ShuffleInts(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
		for i, act := range others {
			act.SubOrder = i
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		if others[i].Priority != others[j].Priority {
			return others[i].Priority > others[j].Priority
		}
		if others[i].EffectiveSpeed != others[j].EffectiveSpeed {
			return others[i].EffectiveSpeed > others[j].EffectiveSpeed
		}
		return others[i].SubOrder < others[j].SubOrder
	})
	return append(switches, others...)
}

// effectiveSpeed implements spec.md §4.4 "Speed computation": base speed
// * boost multiplier * modifiers from ModifySpe, then Trick Room reversal.
func (b *Battle) effectiveSpeed(h ident.Handle) int {
	c, err := b.GetCreature(h)
	if err != nil {
		return 0
	}
	speed := applyStatBoost(c.Stats[ident.Speed], c.Boosts.Get(ident.Speed))

	impl := map[string]fxlang.Value{"mon": fxlang.Mon(h)}
	if v, err := b.Dispatcher.Dispatch(EventModifySpe, impl); err == nil && v.IsDefined() {
		if f, ferr := v.AsFraction(); ferr == nil {
			speed = int(ident.Whole(int64(speed)).Mul(f).RoundUp())
		}
	}

	if _, trickRoom := b.Field.Conditions["trickroom"]; trickRoom {
		return int(^uint16(0)) - speed
	}
	return speed
}

func (b *Battle) executeAction(act *Action) error {
	switch act.Kind {
	case ActionSwitch:
		return b.executeSwitch(act)
	case ActionMove:
		return b.executeMove(act)
	case ActionTeamOrder:
		return b.executeTeamOrder(act)
	case ActionLearnMove:
		return b.executeLearnMove(act)
	default:
		return nil
	}
}

// executeTeamOrder applies a team-preview reordering (spec.md §4.4 step 2
// "TeamOrderAction"): act.Order is a permutation of team indices, read
// left-to-right as the new lead-to-bench ordering.
func (b *Battle) executeTeamOrder(act *Action) error {
	player := b.Field.Sides[act.SideIdx].Players[act.PlayerIdx]
	if len(act.Order) != len(player.Team) {
		return &EngineInvariantError{Invariant: "team order permutation", Detail: "order length does not match team size"}
	}
	seen := make(map[int]bool, len(act.Order))
	reordered := make([]ident.Handle, len(act.Order))
	for i, idx := range act.Order {
		if idx < 0 || idx >= len(player.Team) || seen[idx] {
			return &EngineInvariantError{Invariant: "team order permutation", Detail: "order is not a permutation of team indices"}
		}
		seen[idx] = true
		reordered[i] = player.Team[idx]
	}
	player.Team = reordered
	b.Log.Emit(formatEvent("teamorder", kv("player", player.ID)))
	return nil
}

// executeLearnMove applies an outstanding PendingLearn (spec.md §4.4 step 2
// "LearnMoveAction"): accepting with a full moveset overwrites
// act.OverwriteSlot with a fresh-PP MoveSlot (spec.md §8's learn/overwrite
// round-trip law); declining just clears the pending offer.
func (b *Battle) executeLearnMove(act *Action) error {
	player := b.Field.Sides[act.SideIdx].Players[act.PlayerIdx]
	defer func() { player.PendingLearn = nil }()

	if !act.Accept {
		return nil
	}
	c, err := b.GetCreature(act.User)
	if err != nil {
		return err
	}
	mv, ok := b.Data.GetMoveByName(act.MoveID)
	if !ok {
		return fmt.Errorf("battle: unknown move %q to learn", act.MoveID)
	}
	slot := MoveSlot{ID: mv.ID, Name: mv.Name, PP: mv.PP, MaxPP: mv.PP, Target: mv.Target}

	maxMoveSlots := b.Config.Format.NumericRules.MaxMoveCount
	if len(c.Moves) < maxMoveSlots {
		c.Moves = append(c.Moves, slot)
		c.BaseMoves = append(c.BaseMoves, slot)
	} else {
		if act.OverwriteSlot < 0 || act.OverwriteSlot >= len(c.Moves) {
			return &EngineInvariantError{Invariant: "learn-move overwrite slot", Detail: "overwrite slot out of range"}
		}
		c.Moves[act.OverwriteSlot] = slot
		c.BaseMoves[act.OverwriteSlot] = slot
	}
	b.Log.Emit(formatEvent("learnmove", kv("mon", b.ref(c)), kv("move", mv.Name)))
	return nil
}

func (b *Battle) executeMove(act *Action) error {
	user, err := b.GetCreature(act.User)
	if err != nil {
		return err
	}
	mv, ok := b.Data.GetMoveByName(act.MoveID)
	if !ok {
		return fmt.Errorf("battle: unknown move %q selected", act.MoveID)
	}
	// Struggle fallback: if every slot is out of PP, the action becomes
	// Struggle regardless of what was requested (spec.md §4.5).
	if b.allOutOfPP(user) {
		if struggle, ok := b.Data.GetMoveByName("Struggle"); ok {
			mv = struggle
		}
	}

	targets := b.resolveTargets(user, &mv, act.TargetSlot)
	return b.UseMove(user, &mv, targets)
}

func (b *Battle) allOutOfPP(c *Creature) bool {
	if len(c.Moves) == 0 {
		return false
	}
	for _, s := range c.Moves {
		if s.PP > 0 {
			return false
		}
	}
	return true
}

// resolveTargets implements spec.md §4.5 step 2 for the target modes the
// engine supports out of the box. Redirection (Follow Me, Lightning Rod)
// is not applied: the list comes only from the move's target mode and the
// chosen slot.
func (b *Battle) resolveTargets(user *Creature, mv *datastore.Move, targetSlot int) []*Creature {
	var out []*Creature
	foeSide := b.Field.Sides[1-user.SideIdx]
	ownSide := b.Field.Sides[user.SideIdx]

	add := func(h ident.Handle) {
		if h == ident.InvalidHandle {
			return
		}
		if c, err := b.GetCreature(h); err == nil && !c.Fainted {
			out = append(out, c)
		}
	}

	switch mv.Target {
	case datastore.TargetSelf:
		add(user.Handle)
	case datastore.TargetAllAdjacentFoes, datastore.TargetAll:
		for _, h := range foeSide.Active {
			add(h)
		}
		if mv.Target == datastore.TargetAll {
			for _, h := range ownSide.Active {
				if h != user.Handle {
					add(h)
				}
			}
		}
	case datastore.TargetAllies:
		for _, h := range ownSide.Active {
			if h != user.Handle {
				add(h)
			}
		}
	case datastore.TargetAllAdjacent:
		for _, h := range foeSide.Active {
			add(h)
		}
		for _, h := range ownSide.Active {
			if h != user.Handle {
				add(h)
			}
		}
	case datastore.TargetRandomNormal:
		var candidates []ident.Handle
		for _, h := range foeSide.Active {
			if h != ident.InvalidHandle {
				candidates = append(candidates, h)
			}
		}
		if len(candidates) > 0 {
			add(candidates[b.RNG.Range(0, len(candidates)-1)])
		}
	case datastore.TargetAdjacentAlly, datastore.TargetAdjacentAllyOrSelf:
		if targetSlot >= 0 && targetSlot < len(ownSide.Active) {
			if h := ownSide.Active[targetSlot]; h != user.Handle || mv.Target == datastore.TargetAdjacentAllyOrSelf {
				add(h)
			}
		}
	default: // adjacent foe/any/normal: trust the chosen slot
		if targetSlot >= 0 && targetSlot < len(foeSide.Active) {
			add(foeSide.Active[targetSlot])
		} else if len(foeSide.Active) > 0 {
			add(foeSide.Active[0])
		}
	}
	return out
}

func (b *Battle) executeSwitch(act *Action) error {
	side := b.Field.Sides[act.SideIdx]
	newC, err := b.GetCreature(act.ReplacementHandle)
	if err != nil {
		return err
	}

	// find which slot is switching out: the first active slot owned by
	// this side that requested a switch this action, or any empty one.
	pos := b.firstSwitchablePosition(side)
	if pos < 0 {
		return &EngineInvariantError{Invariant: "switch target exists", Detail: "no switchable position found"}
	}

	if old := side.Active[pos]; old != ident.InvalidHandle {
		if oldC, err := b.GetCreature(old); err == nil {
			b.switchOut(oldC)
		}
	}

	side.Active[pos] = newC.Handle
	newC.Active = true
	newC.ActivePosition = pos
	newC.ActiveTurns = 0
	newC.Moves = append([]MoveSlot(nil), newC.BaseMoves...)

	// switchOut unregisters every listener sourced from this creature's
	// handle, ability/item/status programs included; re-register them now
	// that it is active again (spec.md §4.3 "Callbacks are registered by an
	// entity's data definition").
	if err := b.RegisterAbility(newC.Handle, newC.AbilityID); err != nil {
		return err
	}
	if err := b.RegisterItem(newC.Handle, newC.ItemID); err != nil {
		return err
	}
	if newC.Status != StatusNone {
		if err := b.RegisterCondition(newC.Handle, string(newC.Status)); err != nil {
			return err
		}
	}

	b.Log.Emit(formatEvent("switch",
		kv("player", fmt.Sprint(act.PlayerIdx)), kv("position", fmt.Sprint(pos)),
		kv("name", newC.Nickname), kv("health", b.healthString(newC)),
		kv("species", newC.CurrentSpecies.Name), kv("level", fmt.Sprint(newC.Level))))

	b.Dispatcher.Dispatch(EventSwitchIn, map[string]fxlang.Value{"mon": fxlang.Mon(newC.Handle)})
	return nil
}

func (b *Battle) firstSwitchablePosition(side *Side) int {
	for pos, h := range side.Active {
		if h == ident.InvalidHandle {
			return pos
		}
		if c, err := b.GetCreature(h); err == nil && c.NeedsSwitch {
			return pos
		}
	}
	return -1
}

// switchOut clears volatile state, per spec.md §3 "Volatile conditions
// are ... destroyed ... on switch-out".
func (b *Battle) switchOut(c *Creature) {
	b.Dispatcher.Dispatch(EventSwitchOut, map[string]fxlang.Value{"mon": fxlang.Mon(c.Handle)})
	b.registry.Unregister(c.Handle)
	c.Active = false
	c.ActivePosition = -1
	c.Volatiles = map[string]EffectState{}
	c.Boosts = ident.BoostTable{}
	c.NeedsSwitch = false
}

// flushFaints processes the faint queue (spec.md §4.4 step 4/5: "After
// every action, flush the FaintQueue").
func (b *Battle) flushFaints() error {
	for _, h := range b.Faints.Drain() {
		c, err := b.GetCreature(h)
		if err != nil {
			return err
		}
		b.Log.Emit(formatEvent("faint", kv("mon", b.ref(c))))
		b.Dispatcher.Dispatch(EventFaint, map[string]fxlang.Value{"mon": fxlang.Mon(h)})
		if c.Active {
			side := b.Field.Sides[c.SideIdx]
			side.Active[c.ActivePosition] = ident.InvalidHandle
			b.switchOut(c)
			side.Players[0].FaintedLastTurn = true
		}
		if err := b.ValidateInvariants(); err != nil {
			return err
		}
	}
	return nil
}

// runResidual raises Residual events for weather, terrain, field
// conditions, side conditions (both sides), then every active creature in
// speed order, flushing faints between each step (spec.md §4.4 step 5).
func (b *Battle) runResidual() error {
	b.Log.Emit(formatEvent("residual"))

	if b.Field.Weather != nil {
		if err := b.residualStep(b.Field.Weather.Handle); err != nil {
			return err
		}
	}
	if b.Field.Terrain != nil {
		if err := b.residualStep(b.Field.Terrain.Handle); err != nil {
			return err
		}
	}
	for _, id := range sortedFieldConditionIDs(b.Field.Conditions) {
		if err := b.residualStep(b.Field.Conditions[id].Handle); err != nil {
			return err
		}
	}
	for _, side := range b.Field.Sides {
		for _, id := range sortedSideConditionIDs(side.Conditions) {
			if err := b.residualStep(side.Conditions[id].Handle); err != nil {
				return err
			}
		}
	}

	var actives []*Creature
	for _, side := range b.Field.Sides {
		for _, h := range side.Active {
			if h == ident.InvalidHandle {
				continue
			}
			if c, err := b.GetCreature(h); err == nil && !c.Fainted {
				actives = append(actives, c)
			}
		}
	}
	sort.SliceStable(actives, func(i, j int) bool {
		return b.effectiveSpeed(actives[i].Handle) > b.effectiveSpeed(actives[j].Handle)
	})
	for _, c := range actives {
		if err := b.residualStep(c.Handle); err != nil {
			return err
		}
	}
	return nil
}

// residualStep dispatches one OnResidual event for owner (a creature,
// weather, terrain, or side/field condition handle) and flushes any faint
// it caused before the next entity's residual runs.
func (b *Battle) residualStep(owner ident.Handle) error {
	impl := map[string]fxlang.Value{"mon": fxlang.Mon(owner)}
	for _, l := range b.registry.collect(EventOnResidual) {
		if l.SourceHandle != owner {
			continue
		}
		ctx := fxlang.NewContext(eventDefs[EventOnResidual].Flags, impl)
		if _, err := b.Dispatcher.Eval.Run(ctx, l.Program); err != nil {
			b.Dispatcher.logRuntimeError(l.EffectName, EventOnResidual, err)
		}
	}
	return b.flushFaints()
}

// sortedFieldConditionIDs returns field condition IDs in a stable order so
// residual dispatch does not depend on Go's randomized map iteration
// (spec.md §5: "same seed + same input choices = same log").
func sortedFieldConditionIDs(m map[string]*FieldCondition) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedSideConditionIDs is sortedFieldConditionIDs's SideCondition twin.
func sortedSideConditionIDs(m map[string]*SideCondition) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// endOfTurn implements spec.md §4.4 step 6.
func (b *Battle) endOfTurn() error {
	for _, side := range b.Field.Sides {
		for _, h := range side.Active {
			if h == ident.InvalidHandle {
				continue
			}
			if c, err := b.GetCreature(h); err == nil && !c.Fainted {
				c.ActiveTurns++
				c.DamageThisTurn = 0
				c.MoveFailedThisTurn = false
				c.Outcome = OutcomeNone
			}
		}
	}
	if b.Field.Weather != nil && b.Field.Weather.TurnsRemaining > 0 {
		b.Field.Weather.TurnsRemaining--
		if b.Field.Weather.TurnsRemaining == 0 {
			b.Field.Weather = nil
		}
	}
	if b.Field.Terrain != nil && b.Field.Terrain.TurnsRemaining > 0 {
		b.Field.Terrain.TurnsRemaining--
		if b.Field.Terrain.TurnsRemaining == 0 {
			b.Field.Terrain = nil
		}
	}
	for id, cond := range b.Field.Conditions {
		if cond.TurnsRemaining > 0 {
			cond.TurnsRemaining--
			if cond.TurnsRemaining == 0 {
				delete(b.Field.Conditions, id)
			}
		}
	}

	winner := b.checkWinCondition()
	if winner != -1 {
		b.ended = true
		b.winner = winner
		if winner == -2 {
			b.Log.Emit(formatEvent("tie"))
		} else {
			b.Log.Emit(formatEvent("win", kv("side", fmt.Sprint(winner))))
		}
		return nil
	}
	return nil
}

// checkWinCondition returns the winning side index, -2 for a tie, or -1
// if the battle continues.
func (b *Battle) checkWinCondition() int {
	aliveSides := map[int]bool{}
	for _, side := range b.Field.Sides {
		for _, p := range side.Players {
			for _, h := range p.Team {
				if c, err := b.GetCreature(h); err == nil && !c.Fainted {
					aliveSides[side.Index] = true
				}
			}
		}
	}
	switch len(aliveSides) {
	case 0:
		return -2
	case 1:
		for idx := range aliveSides {
			return idx
		}
	}
	return -1
}

// Ended reports whether the battle has concluded.
func (b *Battle) Ended() bool { return b.ended }

// Winner reports the winning side index, -2 for a tie, or -1 if the
// battle has not yet ended.
func (b *Battle) Winner() int {
	if !b.ended {
		return -1
	}
	return b.winner
}

// DispatchHighWater reports the deepest event-dispatch nesting level
// reached so far, for the host's observability layer.
func (b *Battle) DispatchHighWater() int { return b.Dispatcher.HighWaterDepth() }
