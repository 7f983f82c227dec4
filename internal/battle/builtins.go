package battle

import (
	"fmt"

	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// builtinFunc is a Go-side implementation of one fxlang function-call
// statement/expression (spec.md §4.2: `name: arg1 arg2 ...`).
type builtinFunc func(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error)

var builtins = map[string]builtinFunc{
	"damage":           fnDamage,
	"heal":             fnHeal,
	"boost":            fnBoost,
	"unboost":          fnUnboost,
	"setstatus":        fnSetStatus,
	"curestatus":       fnCureStatus,
	"faint":            fnFaintCall,
	"log":              fnLog,
	"setweather":       fnSetWeather,
	"setterrain":       fnSetTerrain,
	"addvolatile":      fnAddVolatile,
	"addsidecondition": fnAddSideCondition,
}

func handleArg(args []fxlang.Value, i int) (ident.Handle, error) {
	if i >= len(args) {
		return ident.InvalidHandle, fmt.Errorf("fxlang: missing handle argument %d", i)
	}
	return args[i].Handle()
}

func intArg(args []fxlang.Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("fxlang: missing numeric argument %d", i)
	}
	f, err := args[i].AsFraction()
	if err != nil {
		return 0, err
	}
	return f.Num / f.Den, nil
}

func stringArg(args []fxlang.Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("fxlang: missing string argument %d", i)
	}
	return args[i].AsString()
}

// fnDamage implements `damage: $target <amount>`: the shared HP-deduction
// primitive every move/residual/secondary-effect path funnels through, so
// the faint queue and event log stay consistent (spec.md §4.5 step 6).
func fnDamage(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	amount, err := intArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	b.ApplyDamage(c, int(amount))
	return fxlang.Undefined(), nil
}

// ApplyDamage deducts HP (capped at current HP), logs the change, and
// queues a faint if HP reaches zero.
func (b *Battle) ApplyDamage(c *Creature, amount int) int {
	if amount < 0 {
		amount = 0
	}
	if amount > c.HP {
		amount = c.HP
	}
	c.HP -= amount
	c.DamageThisTurn += amount
	b.Log.Emit(formatEvent("damage", kv("mon", creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)), kv("health", b.healthString(c))))
	if c.HP == 0 && !c.Fainted {
		c.Fainted = true
		b.Faints.Push(c.Handle)
	}
	return amount
}

// healthString renders the (current,max) health pair per the
// reveal_actual_health configuration (spec.md §6): exact values when
// true, else a rounded-up percentage that never reads 100 while damaged.
func (b *Battle) healthString(c *Creature) string {
	if b.Config.RevealActualHealth {
		return fmt.Sprintf("%d/%d", c.HP, c.MaxHP)
	}
	if c.HP == 0 {
		return "0/100"
	}
	pct := ident.F(int64(c.HP)*100, int64(c.MaxHP)).RoundUp()
	if pct >= 100 && c.HP < c.MaxHP {
		pct = 99
	}
	return fmt.Sprintf("%d/100", pct)
}

func fnHeal(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	amount, err := intArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	b.ApplyHeal(c, int(amount))
	return fxlang.Bool(true), nil
}

// ApplyHeal adds HP, capped at MaxHP, and logs the change. Healing a
// fainted creature is a no-op (spec.md §3 invariant: hp==0 <=> fainted).
func (b *Battle) ApplyHeal(c *Creature, amount int) int {
	if c.Fainted || amount <= 0 {
		return 0
	}
	if c.HP+amount > c.MaxHP {
		amount = c.MaxHP - c.HP
	}
	c.HP += amount
	b.Log.Emit(formatEvent("heal", kv("mon", creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)), kv("health", b.healthString(c))))
	return amount
}

func fnBoost(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	return applyBoostCall(b, args, 1)
}

func fnUnboost(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	return applyBoostCall(b, args, -1)
}

func applyBoostCall(b *Battle, args []fxlang.Value, sign int) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	statName, err := stringArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	by, err := intArg(args, 2)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	stat, err := parseStat(statName)
	if err != nil {
		return fxlang.Value{}, err
	}
	b.ApplyBoost(c, stat, sign*int(by))
	return fxlang.Bool(true), nil
}

func parseStat(name string) (ident.Stat, error) {
	for _, s := range ident.BoostableStats {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("fxlang: unknown stat %q", name)
}

// ApplyBoost changes a boost stage, clamping to [-6, 6] and logging
// `boost`/`unboost` per spec.md §6. Saturation at the cap is still a
// legal, logged event — it just changes nothing numerically.
func (b *Battle) ApplyBoost(c *Creature, stat ident.Stat, delta int) {
	cur := c.Boosts.Get(stat)
	c.Boosts.Set(stat, cur+delta)
	ref := creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)
	if delta >= 0 {
		b.Log.Emit(formatEvent("boost", kv("mon", ref), kv("stat", stat.String()), kv("by", fmt.Sprint(delta))))
	} else {
		b.Log.Emit(formatEvent("unboost", kv("mon", ref), kv("stat", stat.String()), kv("by", fmt.Sprint(-delta))))
	}
}

func fnSetStatus(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	statusName, err := stringArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	ok := b.SetStatus(c, Status(statusName))
	return fxlang.Bool(ok), nil
}

// SetStatus applies a persistent status, rejecting the change if the
// creature already has one (spec.md §3: "at most one persistent status").
// The status ID doubles as a condition ID: its OnResidual/OnStart callbacks
// (burn/poison chip damage, paralysis's speed drop, ...) are registered
// under the creature's own handle, same as its ability and item.
func (b *Battle) SetStatus(c *Creature, status Status) bool {
	if c.Status != StatusNone || c.Fainted {
		return false
	}
	c.Status = status
	c.StatusState = EffectState{}
	if err := b.RegisterCondition(c.Handle, string(status)); err != nil {
		b.Log.Emit(formatEvent("internalerror", kv("effect", string(status)), kv("detail", err.Error())))
	}
	b.Log.Emit(formatEvent("status", kv("mon", creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)), kv("status", string(status))))
	return true
}

func fnCureStatus(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	if c.Status == StatusNone {
		return fxlang.Bool(false), nil
	}
	old := c.Status
	c.Status = StatusNone
	c.StatusState = nil
	b.Log.Emit(formatEvent("curestatus", kv("mon", creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)), kv("status", string(old))))
	return fxlang.Bool(true), nil
}

func fnFaintCall(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	if !c.Fainted {
		c.Fainted = true
		c.HP = 0
		b.Faints.Push(h)
	}
	return fxlang.Undefined(), nil
}

// fnLog lets a script emit a freeform `activate`-style log line, e.g. an
// ability announcing itself (`activate|mon:<ref>|ability:<name>`).
func fnLog(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	if len(args) == 0 {
		return fxlang.Value{}, fmt.Errorf("fxlang: log requires at least an event name")
	}
	name, err := stringArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	var pairs []string
	for _, a := range args[1:] {
		s, err := a.AsString()
		if err != nil {
			return fxlang.Value{}, err
		}
		pairs = append(pairs, s)
	}
	b.Log.Emit(formatEvent(name, pairs...))
	return fxlang.Undefined(), nil
}

func fnSetWeather(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	turns, err := intArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	ok, err := b.SetWeather(id, int(turns))
	if err != nil {
		return fxlang.Value{}, err
	}
	return fxlang.Bool(ok), nil
}

// SetWeather installs field weather, replacing and unregistering whatever
// weather was previously active (spec.md §3 "Field"). turns <= 0 means
// indefinite, matching FieldCondition.TurnsRemaining's -1 convention.
func (b *Battle) SetWeather(id string, turns int) (bool, error) {
	if b.Field.Weather != nil {
		b.registry.Unregister(b.Field.Weather.Handle)
	}
	h := b.Handles.Next()
	b.Field.Weather = &FieldCondition{ID: id, TurnsRemaining: turns, State: EffectState{}, Handle: h}
	if err := b.RegisterCondition(h, id); err != nil {
		return false, err
	}
	b.Log.Emit(formatEvent("weather", kv("weather", id)))
	return true, nil
}

func fnSetTerrain(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	turns, err := intArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	ok, err := b.SetTerrain(id, int(turns))
	if err != nil {
		return fxlang.Value{}, err
	}
	return fxlang.Bool(ok), nil
}

// SetTerrain installs field terrain, replacing whatever was active.
func (b *Battle) SetTerrain(id string, turns int) (bool, error) {
	if b.Field.Terrain != nil {
		b.registry.Unregister(b.Field.Terrain.Handle)
	}
	h := b.Handles.Next()
	b.Field.Terrain = &FieldCondition{ID: id, TurnsRemaining: turns, State: EffectState{}, Handle: h}
	if err := b.RegisterCondition(h, id); err != nil {
		return false, err
	}
	b.Log.Emit(formatEvent("terrain", kv("terrain", id)))
	return true, nil
}

func fnAddVolatile(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	id, err := stringArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	ok, err := b.AddVolatile(c, id)
	if err != nil {
		return fxlang.Value{}, err
	}
	return fxlang.Bool(ok), nil
}

// AddVolatile attaches a volatile condition to a creature, registering its
// callbacks under the creature's own handle so they are torn down
// automatically on switch-out alongside the rest of its volatile state
// (spec.md §3 "Volatile conditions ... destroyed ... on switch-out").
func (b *Battle) AddVolatile(c *Creature, id string) (bool, error) {
	if c.Fainted {
		return false, nil
	}
	if _, exists := c.Volatiles[id]; exists {
		return false, nil
	}
	c.Volatiles[id] = EffectState{}
	if err := b.RegisterCondition(c.Handle, id); err != nil {
		delete(c.Volatiles, id)
		return false, err
	}
	b.Log.Emit(formatEvent("volatile", kv("mon", creatureRef(c.Nickname, fmt.Sprint(c.PlayerIdx), c.ActivePosition)), kv("condition", id)))
	return true, nil
}

func fnAddSideCondition(b *Battle, ctx *fxlang.Context, args []fxlang.Value) (fxlang.Value, error) {
	h, err := handleArg(args, 0)
	if err != nil {
		return fxlang.Value{}, err
	}
	id, err := stringArg(args, 1)
	if err != nil {
		return fxlang.Value{}, err
	}
	turns, err := intArg(args, 2)
	if err != nil {
		return fxlang.Value{}, err
	}
	c, err := b.GetCreature(h)
	if err != nil {
		return fxlang.Value{}, err
	}
	ok, err := b.AddSideCondition(c.SideIdx, id, int(turns))
	if err != nil {
		return fxlang.Value{}, err
	}
	return fxlang.Bool(ok), nil
}

// AddSideCondition adds a side-scoped condition (screens, hazards, ...) to
// the given side. A second application of an already-present condition
// just stacks a layer (spec.md's spikes-style "Layers" field) rather than
// re-registering its callbacks.
func (b *Battle) AddSideCondition(sideIdx int, id string, turns int) (bool, error) {
	if sideIdx < 0 || sideIdx > 1 {
		return false, fmt.Errorf("battle: invalid side index %d", sideIdx)
	}
	side := b.Field.Sides[sideIdx]
	if existing, ok := side.Conditions[id]; ok {
		existing.Layers++
		return true, nil
	}
	h := b.Handles.Next()
	side.Conditions[id] = &SideCondition{ID: id, TurnsRemaining: turns, Layers: 1, State: EffectState{}, Handle: h}
	if err := b.RegisterCondition(h, id); err != nil {
		delete(side.Conditions, id)
		return false, err
	}
	b.Log.Emit(formatEvent("sidecondition", kv("side", fmt.Sprint(sideIdx)), kv("condition", id)))
	return true, nil
}
