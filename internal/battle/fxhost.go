package battle

import (
	"fmt"

	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// Battle implements fxlang.Host: every dot-access and built-in function
// call a running program performs re-enters the arena through the handle
// embedded in the fxlang.Value (spec.md §9 "borrow-checked access layer").
// There is no separate lock table here because the engine is single-
// threaded per battle (spec.md §5) — "borrow-checked" means "every access
// goes through this boundary and is validated", not "concurrency-safe".

var _ fxlang.Host = (*Battle)(nil)

// GetMember implements the read side of dot-notation access (spec.md §4.2
// "Member access").
func (b *Battle) GetMember(recv fxlang.Value, name string) (fxlang.Value, error) {
	switch recv.Kind {
	case fxlang.KindMon:
		h, err := recv.Handle()
		if err != nil {
			return fxlang.Value{}, err
		}
		c, err := b.GetCreature(h)
		if err != nil {
			return fxlang.Value{}, err
		}
		return b.monMember(c, name)
	case fxlang.KindActiveMove:
		h, err := recv.Handle()
		if err != nil {
			return fxlang.Value{}, err
		}
		am, err := b.GetActiveMove(h)
		if err != nil {
			return fxlang.Value{}, err
		}
		return b.activeMoveMember(am, name)
	case fxlang.KindEffect:
		return b.effectMember(recv, name)
	case fxlang.KindObject:
		obj, err := recv.AsObject()
		if err != nil {
			return fxlang.Value{}, err
		}
		v, ok := obj[name]
		if !ok {
			return fxlang.Undefined(), nil
		}
		return v, nil
	default:
		return fxlang.Value{}, fmt.Errorf("fxlang: %s has no member access", recv.Kind)
	}
}

func (b *Battle) monMember(c *Creature, name string) (fxlang.Value, error) {
	switch name {
	case "active":
		return fxlang.Bool(c.Active), nil
	case "base_max_hp":
		return fxlang.U32(uint32(c.MaxHP)), nil
	case "fainted":
		return fxlang.Bool(c.Fainted), nil
	case "item":
		if c.ItemID == "" {
			return fxlang.String(""), nil
		}
		return fxlang.String(c.ItemID), nil
	case "hp":
		return fxlang.U32(uint32(c.HP)), nil
	case "max_hp":
		return fxlang.U32(uint32(c.MaxHP)), nil
	case "last_target_location":
		return fxlang.U32(uint32(c.LastTargetLoc)), nil
	case "move_this_turn_failed":
		return fxlang.Bool(c.MoveFailedThisTurn), nil
	case "position_details":
		return fxlang.U32(uint32(c.ActivePosition)), nil
	case "status":
		if c.Status == StatusNone {
			return fxlang.String(""), nil
		}
		return fxlang.String(string(c.Status)), nil
	case "is_defined":
		return fxlang.Bool(c.Handle != ident.InvalidHandle), nil
	default:
		return fxlang.Value{}, fmt.Errorf("fxlang: creature has no member %q", name)
	}
}

func (b *Battle) activeMoveMember(am *ActiveMove, name string) (fxlang.Value, error) {
	switch name {
	case "base_power":
		return fxlang.U32(uint32(am.BasePower)), nil
	case "category":
		return fxlang.String(am.Category.String()), nil
	case "id":
		return fxlang.String(am.Move.ID), nil
	case "sleep_usable":
		return fxlang.Bool(am.Move.Flags["sleep_usable"]), nil
	case "thaws_target":
		return fxlang.Bool(am.Move.Flags["thaws_target"]), nil
	case "type":
		return fxlang.String(am.Type.String()), nil
	default:
		return fxlang.Value{}, fmt.Errorf("fxlang: active move has no member %q", name)
	}
}

func (b *Battle) effectMember(recv fxlang.Value, name string) (fxlang.Value, error) {
	h, err := recv.Handle()
	if err != nil {
		return fxlang.Value{}, err
	}
	eff, ok := b.effects[h]
	if !ok {
		return fxlang.Value{}, &EngineInvariantError{Invariant: "handle validity", Detail: "unknown effect handle"}
	}
	switch name {
	case "id":
		return fxlang.String(eff.ID), nil
	case "name":
		return fxlang.String(eff.Name), nil
	case "is_ability":
		return fxlang.Bool(eff.Kind == EffectKindAbility), nil
	case "is_move":
		return fxlang.Bool(eff.Kind == EffectKindMove), nil
	case "has_source_effect":
		return fxlang.Bool(eff.SourceEffect != ""), nil
	case "move_target":
		return fxlang.String(eff.MoveTarget), nil
	default:
		return fxlang.Value{}, fmt.Errorf("fxlang: effect has no member %q", name)
	}
}

// assignableMonMembers is the strict subset spec.md §4.2 allows scripts
// to mutate directly on a creature.
var assignableMonMembers = map[string]bool{
	"item":                  true,
	"last_target_location":  true,
	"move_this_turn_failed": true,
}

var assignableActiveMoveMembers = map[string]bool{
	"base_power": true,
}

// SetMember implements the write side of dot-notation access, rejecting
// anything outside the assignable subset (spec.md §4.2).
func (b *Battle) SetMember(recv fxlang.Value, name string, v fxlang.Value) error {
	switch recv.Kind {
	case fxlang.KindMon:
		if !assignableMonMembers[name] {
			return fmt.Errorf("fxlang: creature member %q is not assignable", name)
		}
		h, err := recv.Handle()
		if err != nil {
			return err
		}
		c, err := b.GetCreature(h)
		if err != nil {
			return err
		}
		switch name {
		case "item":
			s, err := v.AsString()
			if err != nil {
				return err
			}
			c.ItemID = s
		case "last_target_location":
			f, err := v.AsFraction()
			if err != nil {
				return err
			}
			c.LastTargetLoc = int(f.Num / f.Den)
		case "move_this_turn_failed":
			bv, err := v.AsBool()
			if err != nil {
				return err
			}
			c.MoveFailedThisTurn = bv
		}
		return nil
	case fxlang.KindActiveMove:
		if !assignableActiveMoveMembers[name] {
			return fmt.Errorf("fxlang: active move member %q is not assignable", name)
		}
		h, err := recv.Handle()
		if err != nil {
			return err
		}
		am, err := b.GetActiveMove(h)
		if err != nil {
			return err
		}
		f, err := v.AsFraction()
		if err != nil {
			return err
		}
		am.BasePower = int(f.Num / f.Den)
		return nil
	default:
		return fmt.Errorf("fxlang: %s has no assignable members", recv.Kind)
	}
}

// CallFunction dispatches a built-in fxlang function call (spec.md §4.2,
// e.g. `damage: $target 10`, `boost: $mon atk 1`) to the corresponding
// Go-side mutation. Unknown names are a runtime error, not a silent no-op.
func (b *Battle) CallFunction(ctx *fxlang.Context, name string, args []fxlang.Value) (fxlang.Value, error) {
	fn, ok := builtins[name]
	if !ok {
		return fxlang.Value{}, fmt.Errorf("fxlang: unknown function %q", name)
	}
	return fn(b, ctx, args)
}
