package battle

import (
	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// RegisterAbility compiles and registers every event program an
// ability's data definition declares (spec.md §4.3: "Callbacks are
// registered by an entity's data definition"). Source speed is resolved
// once at registration time from the current battle state, and Priority
// is left at 0, so listeners order by speed then registration; a
// volatile/ability/item that changes speed later is re-registered by the
// caller (e.g. on switch-in) rather than tracked live here.
func (b *Battle) RegisterAbility(owner ident.Handle, abilityID string) error {
	ab, ok := b.Data.GetAbilityByName(abilityID)
	if !ok {
		return nil
	}
	return b.registerPrograms(owner, ab.Programs)
}

// RegisterItem compiles and registers an item's event programs.
func (b *Battle) RegisterItem(owner ident.Handle, itemID string) error {
	it, ok := b.Data.GetItemByName(itemID)
	if !ok {
		return nil
	}
	return b.registerPrograms(owner, it.Programs)
}

// RegisterCondition compiles and registers a side/field/volatile
// condition's event programs.
func (b *Battle) RegisterCondition(owner ident.Handle, conditionID string) error {
	cond, ok := b.Data.GetConditionByID(conditionID)
	if !ok {
		return nil
	}
	return b.registerPrograms(owner, cond.Programs)
}

func (b *Battle) registerPrograms(owner ident.Handle, programs map[string]string) error {
	speed := 0
	if c, err := b.GetCreature(owner); err == nil {
		speed = b.effectiveSpeed(c.Handle)
	}
	for eventName, source := range programs {
		prog, err := fxlang.Parse(source)
		if err != nil {
			return NewStaticError("compiling "+eventName+" callback", err)
		}
		b.registry.Register(EventKind(eventName), &Listener{
			EffectName:   eventName,
			SourceHandle: owner,
			SourceSpeed:  speed,
			Program:      prog,
		})
	}
	return nil
}
