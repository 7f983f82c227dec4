package battle

import (
	"fmt"

	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// critChance maps each of the five CriticalHitTiers (never, 1/24, 1/8,
// 1/2, always) to its probability as an ident.Fraction.
var critChance = map[datastore.CriticalHitTier]ident.Fraction{
	datastore.CritTierNever: ident.Whole(0),
	datastore.CritTier0:     ident.F(1, 24),
	datastore.CritTier1:     ident.F(1, 8),
	datastore.CritTier2:     ident.F(1, 2),
	datastore.CritTier3:     ident.Whole(1),
}

// UseMove runs the full move-execution pipeline for one action (spec.md
// §4.5). targets is the resolved target list after step 2; for
// single-target moves it has exactly one entry.
func (b *Battle) UseMove(user *Creature, mv *datastore.Move, targets []*Creature) error {
	slot := b.findMoveSlot(user, mv.ID)
	usedStruggle := slot == nil || slot.PP <= 0

	// PP deduction happens before BeforeMove (spec.md §4.5 "PP deduction").
	if !usedStruggle {
		slot.PP--
		slot.Used = true
	}

	am := b.newActiveMove(mv, user.Handle)
	defer b.releaseActiveMove(am.Handle)
	eff := b.newEffect(mv.ID, mv.Name, EffectKindMove)
	defer b.releaseEffect(eff.Handle)

	user.LastMoveSelected = mv.ID

	// 1. BeforeMove: may cause the move to fail outright.
	ok, err := b.runBeforeMove(user, am, eff)
	if err != nil {
		return err
	}
	if !ok {
		user.MoveFailedThisTurn = true
		b.Log.Emit(formatEvent("fail", kv("mon", b.ref(user))))
		return nil
	}

	b.Log.Emit(formatEvent("move", kv("mon", b.ref(user)), kv("name", mv.Name)))

	if mv.Category == datastore.CategoryStatus {
		return b.runStatusMove(user, mv, am, eff, targets)
	}

	hits := 1
	if mv.MultiHitMin > 1 || mv.MultiHitMax > 1 {
		hits = b.RNG.Range(mv.MultiHitMin, mv.MultiHitMax)
	}

	var totalDamage int
	for hit := 0; hit < hits; hit++ {
		anyHit := false
		for _, target := range targets {
			if target.Fainted {
				continue
			}
			if hit > 0 && mv.MultiAccuracy {
				// accuracy already rolled once for this whole multi-hit.
			} else if !b.rollAccuracy(user, target, mv, am, eff) {
				b.Log.Emit(formatEvent("miss", kv("mon", b.ref(target))))
				continue
			}
			dealt, outcome := b.resolveHit(user, target, mv, am, eff)
			target.Outcome = outcome
			totalDamage += dealt
			anyHit = true
			b.applySecondaries(user, target, mv, am, eff)
		}
		if !anyHit {
			break
		}
	}
	am.TotalDamageDealt = totalDamage

	if mv.RecoilNum > 0 && totalDamage > 0 {
		recoil := totalDamage * mv.RecoilNum / mv.RecoilDen
		if recoil < 1 {
			recoil = 1
		}
		b.ApplyDamage(user, recoil)
	}
	if mv.DrainNum > 0 && totalDamage > 0 {
		drain := totalDamage * mv.DrainNum / mv.DrainDen
		if drain > 0 {
			b.ApplyHeal(user, drain)
		}
	}

	return nil
}

func (b *Battle) ref(c *Creature) string {
	return creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)
}

func (b *Battle) findMoveSlot(c *Creature, moveID string) *MoveSlot {
	for i := range c.Moves {
		if c.Moves[i].ID == moveID {
			return &c.Moves[i]
		}
	}
	return nil
}

func (b *Battle) runBeforeMove(user *Creature, am *ActiveMove, eff *Effect) (bool, error) {
	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(user.Handle),
		"move":   fxlang.ActiveMove(am.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	v, err := b.Dispatcher.Dispatch(EventBeforeMove, impl)
	if err != nil {
		return false, err
	}
	if !v.IsDefined() {
		return true, nil
	}
	return v.AsBool()
}

func (b *Battle) runStatusMove(user *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect, targets []*Creature) error {
	for _, target := range targets {
		if target.Fainted {
			continue
		}
		if !b.rollAccuracy(user, target, mv, am, eff) {
			b.Log.Emit(formatEvent("miss", kv("mon", b.ref(target))))
			continue
		}
		// For status moves, step 5 (damage) is skipped and this program, if
		// declared, is the primary effect (spec.md §4.5 "For status moves,
		// step 5 is skipped and step 7 is the primary effect").
		if mv.OnHitProgram != "" {
			b.runInlineProgram(mv.OnHitProgram, user, target, am, eff)
		}
		b.applySecondaries(user, target, mv, am, eff)
	}
	return nil
}

// runInlineProgram compiles and runs an ad hoc fxlang program once, outside
// the persistent listener registry: a secondary effect or status move's
// OnHitProgram "raises its own event chain" (spec.md §4.5 step 7) rather
// than attaching a callback that fires on future events.
func (b *Battle) runInlineProgram(source string, user, target *Creature, am *ActiveMove, eff *Effect) {
	prog, err := fxlang.Parse(source)
	if err != nil {
		b.Dispatcher.logRuntimeError(eff.ID, EventKind("InlineEffect"), err)
		return
	}
	flags := fxlang.FlagMon | fxlang.FlagTarget | fxlang.FlagSource | fxlang.FlagMove | fxlang.FlagEffect
	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(target.Handle),
		"target": fxlang.Mon(target.Handle),
		"source": fxlang.Mon(user.Handle),
		"move":   fxlang.ActiveMove(am.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	ctx := fxlang.NewContext(flags, impl)
	if _, err := b.Dispatcher.Eval.Run(ctx, prog); err != nil {
		b.Dispatcher.logRuntimeError(eff.ID, EventKind("InlineEffect"), err)
	}
}

// rollAccuracy implements spec.md §4.5 step 3.
func (b *Battle) rollAccuracy(user, target *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect) bool {
	if mv.Accuracy == 0 {
		return true
	}
	base := ident.F(int64(mv.Accuracy), 100)
	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(user.Handle),
		"target": fxlang.Mon(target.Handle),
		"source": fxlang.Mon(user.Handle),
		"move":   fxlang.ActiveMove(am.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	v, err := b.Dispatcher.Dispatch(EventAccuracy, impl)
	if err == nil && v.IsDefined() {
		if f, ferr := v.AsFraction(); ferr == nil {
			base = base.Mul(f)
		}
	}
	return b.RNG.Chance(base.Num, base.Den)
}

// resolveHit runs steps 4-6 for one target and returns the damage dealt.
func (b *Battle) resolveHit(user, target *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect) (int, MoveOutcome) {
	defTypes := target.EffectiveTypes()
	typeMult := ident.CombinedEffectiveness(mv.Type, defTypes)

	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(target.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	if immune, err := b.Dispatcher.Dispatch(EventNegateImmunity, impl); err == nil && immune.IsDefined() {
		if ok, _ := immune.AsBool(); ok {
			typeMult = ident.Whole(1)
		}
	}

	if typeMult.Num == 0 {
		b.Log.Emit(formatEvent("immune", kv("mon", b.ref(target))))
		return 0, OutcomeImmune
	}

	damage := b.computeDamage(user, target, mv, am, eff, typeMult)
	dealt := b.ApplyDamage(target, damage)

	switch {
	case typeMult.Cmp(ident.Whole(1)) > 0:
		b.Log.Emit(formatEvent("supereffective", kv("mon", b.ref(target))))
		return dealt, OutcomeSuperEffective
	case typeMult.Cmp(ident.Whole(1)) < 0:
		b.Log.Emit(formatEvent("resisted", kv("mon", b.ref(target))))
		return dealt, OutcomeResisted
	default:
		return dealt, OutcomeHit
	}
}

// computeDamage implements the formula and fixed modifier order of
// spec.md §4.5 step 5, grounded on original_source's battler-calc crate
// and the Open Question decision recorded in SPEC_FULL.md §6: boost ->
// crit -> STAB -> type effectiveness -> burn halving -> screens ->
// weather -> random factor -> ModifyDamage events.
func (b *Battle) computeDamage(user, target *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect, typeMult ident.Fraction) int {
	level := user.Level
	power := am.BasePower

	var atkStat, defStat int
	if mv.Category == datastore.CategoryPhysical {
		atkStat = user.Stats[ident.Attack]
		defStat = target.Stats[ident.Defense]
	} else {
		atkStat = user.Stats[ident.SpAttack]
		defStat = target.Stats[ident.SpDefense]
	}

	isCrit := b.rollCrit(user, mv, am, eff)

	// boost stage applied to the offensive/defensive stat before the base
	// formula; crits ignore a negative attack boost / positive defense
	// boost in the mainline games, a nuance we keep via the tier check.
	atkBoost := user.Boosts.Get(statForCategory(mv.Category, true))
	defBoost := target.Boosts.Get(statForCategory(mv.Category, false))
	if !(isCrit && atkBoost < 0) {
		atkStat = applyStatBoost(atkStat, atkBoost)
	}
	if !(isCrit && defBoost > 0) {
		defStat = applyStatBoost(defStat, defBoost)
	}

	base := (((2*level/5+2)*power*atkStat)/defStat)/50 + 2
	damage := ident.Whole(int64(base))

	if isCrit {
		damage = damage.Mul(ident.F(3, 2))
		b.Log.Emit(formatEvent("crit", kv("mon", b.ref(target))))
	}

	if hasType(user.EffectiveTypes(), mv.Type) {
		stab := ident.F(3, 2)
		damage = damage.Mul(stab)
	}

	damage = damage.Mul(typeMult)

	if mv.Category == datastore.CategoryPhysical && user.Status == StatusBurn {
		damage = damage.Mul(ident.F(1, 2))
	}

	if screen := b.activeScreen(target.SideIdx); screen {
		if b.Config.BattleType.ActiveSlots() > 1 {
			damage = damage.Mul(ident.F(2, 3))
		} else {
			damage = damage.Mul(ident.F(1, 2))
		}
	}

	if b.Field.Weather != nil {
		damage = damage.Mul(b.weatherDamageMultiplier(mv.Type))
	}

	damage = damage.Mul(b.randomFactor())

	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(target.Handle),
		"target": fxlang.Mon(target.Handle),
		"source": fxlang.Mon(user.Handle),
		"move":   fxlang.ActiveMove(am.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	if v, err := b.Dispatcher.Dispatch(EventModifyDamage, impl); err == nil && v.IsDefined() {
		if f, ferr := v.AsFraction(); ferr == nil {
			damage = damage.Mul(f)
		}
	}

	result := int(damage.RoundUp())
	if result < 1 {
		result = 1
	}
	return result
}

func statForCategory(cat datastore.MoveCategory, attacking bool) ident.Stat {
	if cat == datastore.CategoryPhysical {
		if attacking {
			return ident.Attack
		}
		return ident.Defense
	}
	if attacking {
		return ident.SpAttack
	}
	return ident.SpDefense
}

func applyStatBoost(stat int, boost int) int {
	mult := ident.BoostMultiplier(boost)
	return int(ident.Whole(int64(stat)).Mul(mult).RoundUp())
}

func hasType(types []ident.Type, t ident.Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// rollCrit resolves the critical-hit tier (move base tier + event
// adjustments, clamped) and rolls against it (spec.md §4.5 "Critical hit").
func (b *Battle) rollCrit(user *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect) bool {
	tier := mv.CritTier
	impl := map[string]fxlang.Value{
		"mon":    fxlang.Mon(user.Handle),
		"move":   fxlang.ActiveMove(am.Handle),
		"effect": fxlang.Effect(eff.Handle),
	}
	if v, err := b.Dispatcher.Dispatch(EventModifyCritRatio, impl); err == nil && v.IsDefined() {
		if f, ferr := v.AsFraction(); ferr == nil {
			adj := int(f.Num / f.Den)
			tier = clampCritTier(tier + datastore.CriticalHitTier(adj))
		}
	}
	chance := critChance[tier]
	return b.RNG.Chance(chance.Num, chance.Den)
}

func clampCritTier(t datastore.CriticalHitTier) datastore.CriticalHitTier {
	if t < datastore.CritTierNever {
		return datastore.CritTierNever
	}
	if t > datastore.CritTier3 {
		return datastore.CritTier3
	}
	return t
}

func (b *Battle) activeScreen(sideIdx int) bool {
	side := b.Field.Sides[sideIdx]
	_, hasReflect := side.Conditions["reflect"]
	_, hasLightScreen := side.Conditions["lightscreen"]
	return hasReflect || hasLightScreen
}

func (b *Battle) weatherDamageMultiplier(moveType ident.Type) ident.Fraction {
	switch b.Field.Weather.ID {
	case "sun":
		if moveType == ident.Fire {
			return ident.F(3, 2)
		}
		if moveType == ident.Water {
			return ident.F(1, 2)
		}
	case "rain":
		if moveType == ident.Water {
			return ident.F(3, 2)
		}
		if moveType == ident.Fire {
			return ident.F(1, 2)
		}
	}
	return ident.Whole(1)
}

// randomFactor implements the configurable random damage factor of
// spec.md §4.5 step 5, honoring base_damage_randomization.
func (b *Battle) randomFactor() ident.Fraction {
	switch b.Config.BaseDamageRandomization {
	case config.Max:
		return ident.Whole(1)
	case config.Min:
		return ident.F(85, 100)
	default:
		n := b.RNG.Range(85, 100)
		return ident.F(int64(n), 100)
	}
}

// applySecondaries rolls and applies each declared secondary effect; a
// volatile or inline program "raises its own event chain" independently of
// the others (spec.md §4.5 step 7).
func (b *Battle) applySecondaries(user, target *Creature, mv *datastore.Move, am *ActiveMove, eff *Effect) {
	for _, sec := range mv.Secondaries {
		if !b.RNG.Chance(sec.Chance.Num, sec.Chance.Den) {
			continue
		}
		if sec.StatusID != "" {
			b.SetStatus(target, Status(sec.StatusID))
		}
		if sec.VolatileID != "" {
			if _, err := b.AddVolatile(target, sec.VolatileID); err != nil {
				b.Dispatcher.logRuntimeError(sec.VolatileID, EventKind("SecondaryEffect"), err)
			}
		}
		for stat, delta := range sec.BoostDeltas {
			if delta != 0 {
				b.ApplyBoost(target, stat, delta)
			}
		}
		if sec.Program != "" {
			b.runInlineProgram(sec.Program, user, target, am, eff)
		}
	}
}
