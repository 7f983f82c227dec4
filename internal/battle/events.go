package battle

import (
	"fmt"
	"sort"

	"battlecore/internal/fxlang"
	"battlecore/internal/ident"
)

// EventKind is the closed enum of dispatchable event kinds (spec.md §4.3).
// Only the subset exercised by the move pipeline and turn loop is
// represented concretely; others are recognized names a data definition
// may still register a callback under, dispatched the same generic way.
type EventKind string

const (
	EventResidualOrder   EventKind = "ResidualOrder"
	EventBeforeMove      EventKind = "BeforeMove"
	EventModifyDamage    EventKind = "ModifyDamage"
	EventModifyBoosts    EventKind = "ModifyBoosts"
	EventTrapMon         EventKind = "TrapMon"
	EventDisableMove     EventKind = "DisableMove"
	EventLockMove        EventKind = "LockMove"
	EventTypes           EventKind = "Types"
	EventNegateImmunity  EventKind = "NegateImmunity"
	EventAccuracy        EventKind = "Accuracy"
	EventDamage          EventKind = "Damage"
	EventHeal            EventKind = "Heal"
	EventFaint           EventKind = "Faint"
	EventSetStatus       EventKind = "SetStatus"
	EventSwitchIn        EventKind = "SwitchIn"
	EventSwitchOut       EventKind = "SwitchOut"
	EventOnEnd           EventKind = "OnEnd"
	EventOnStart         EventKind = "OnStart"
	EventOnResidual      EventKind = "OnResidual"
	EventModifyCritRatio EventKind = "ModifyCritRatio"
	EventUseMoveMessage  EventKind = "UseMoveMessage"
	EventModifyMove      EventKind = "ModifyMove"
	EventModifySpe       EventKind = "ModifySpe"
	EventModifyAtk       EventKind = "ModifyAtk"
	EventModifyDef       EventKind = "ModifyDef"
	EventModifySpA       EventKind = "ModifySpA"
	EventModifySpD       EventKind = "ModifySpD"
)

// QuickReturnPolicy tells the dispatcher how to combine the return values
// of multiple callbacks handling the same event (spec.md §4.3).
type QuickReturnPolicy int

const (
	PolicyFirstNonNull QuickReturnPolicy = iota
	PolicyBooleanAnd
	PolicyBooleanOr
	PolicySum
	PolicyProduct
)

// EventDef declares the calling convention for one EventKind: which
// implicit variables it expects and how its callbacks' return values
// combine.
type EventDef struct {
	Kind       EventKind
	Flags      fxlang.ContextFlag
	Policy     QuickReturnPolicy
	ReturnKind fxlang.Kind // KindUndefined if the event returns nothing
}

var eventDefs = map[EventKind]EventDef{
	EventBeforeMove:      {EventBeforeMove, fxlang.FlagMon | fxlang.FlagMove | fxlang.FlagEffect, PolicyBooleanAnd, fxlang.KindBool},
	EventModifyDamage:    {EventModifyDamage, fxlang.FlagMon | fxlang.FlagTarget | fxlang.FlagSource | fxlang.FlagMove | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
	EventModifyBoosts:    {EventModifyBoosts, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindObject},
	EventTrapMon:         {EventTrapMon, fxlang.FlagMon | fxlang.FlagEffect, PolicyBooleanOr, fxlang.KindBool},
	EventDisableMove:     {EventDisableMove, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventLockMove:        {EventLockMove, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindOptString},
	EventTypes:           {EventTypes, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindList},
	EventNegateImmunity:  {EventNegateImmunity, fxlang.FlagMon | fxlang.FlagEffect, PolicyBooleanOr, fxlang.KindBool},
	EventAccuracy:        {EventAccuracy, fxlang.FlagMon | fxlang.FlagTarget | fxlang.FlagSource | fxlang.FlagMove | fxlang.FlagEffect, PolicyProduct, fxlang.KindUFraction},
	EventDamage:          {EventDamage, fxlang.FlagMon | fxlang.FlagSource | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventHeal:             {EventHeal, fxlang.FlagMon | fxlang.FlagEffect, PolicyBooleanAnd, fxlang.KindBool},
	EventFaint:           {EventFaint, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventSetStatus:       {EventSetStatus, fxlang.FlagMon | fxlang.FlagSource | fxlang.FlagEffect, PolicyBooleanAnd, fxlang.KindBool},
	EventSwitchIn:        {EventSwitchIn, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventSwitchOut:       {EventSwitchOut, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventOnEnd:           {EventOnEnd, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventOnStart:         {EventOnStart, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventOnResidual:      {EventOnResidual, fxlang.FlagMon | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventModifyCritRatio: {EventModifyCritRatio, fxlang.FlagMon | fxlang.FlagMove | fxlang.FlagEffect, PolicySum, fxlang.KindU16},
	EventUseMoveMessage:  {EventUseMoveMessage, fxlang.FlagMon | fxlang.FlagTarget | fxlang.FlagMove | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventModifyMove:      {EventModifyMove, fxlang.FlagMon | fxlang.FlagMove | fxlang.FlagEffect, PolicyFirstNonNull, fxlang.KindUndefined},
	EventModifySpe:       {EventModifySpe, fxlang.FlagMon | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
	EventModifyAtk:       {EventModifyAtk, fxlang.FlagMon | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
	EventModifyDef:       {EventModifyDef, fxlang.FlagMon | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
	EventModifySpA:       {EventModifySpA, fxlang.FlagMon | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
	EventModifySpD:       {EventModifySpD, fxlang.FlagMon | fxlang.FlagEffect, PolicyProduct, fxlang.KindU32},
}

// Listener is one registered callback: a compiled fxlang program plus the
// metadata the dispatcher needs to order and invoke it.
type Listener struct {
	EffectName   string
	SourceHandle ident.Handle // the entity (creature/side/field) this was registered by
	Priority     int
	SourceSpeed  int
	Order        int // registration order, for the stable-sort tiebreak
	Program      *fxlang.Program
}

// Registry is the central (entity, event) -> callbacks table (spec.md
// §4.3 "Effect registry & event dispatcher").
type Registry struct {
	listeners map[EventKind][]*Listener
	orderSeq  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: map[EventKind][]*Listener{}}
}

// Register attaches a compiled program to an event kind.
func (r *Registry) Register(kind EventKind, l *Listener) {
	r.orderSeq++
	l.Order = r.orderSeq
	r.listeners[kind] = append(r.listeners[kind], l)
}

// Unregister removes every listener sourced from the given handle (used
// on switch-out / faint / volatile removal).
func (r *Registry) Unregister(source ident.Handle) {
	for kind, ls := range r.listeners {
		out := ls[:0]
		for _, l := range ls {
			if l.SourceHandle != source {
				out = append(out, l)
			}
		}
		r.listeners[kind] = out
	}
}

// collect returns the registry's callbacks for kind, sorted priority
// descending, then source-speed descending, then registration order
// ascending (spec.md §4.3).
func (r *Registry) collect(kind EventKind) []*Listener {
	ls := append([]*Listener(nil), r.listeners[kind]...)
	sort.SliceStable(ls, func(i, j int) bool {
		if ls[i].Priority != ls[j].Priority {
			return ls[i].Priority > ls[j].Priority
		}
		if ls[i].SourceSpeed != ls[j].SourceSpeed {
			return ls[i].SourceSpeed > ls[j].SourceSpeed
		}
		return ls[i].Order < ls[j].Order
	})
	return ls
}

// Dispatcher runs event callbacks against a Battle via a fxlang.Host.
type Dispatcher struct {
	Registry  *Registry
	Eval      *fxlang.Evaluator
	MaxDepth  int
	depth     int
	highWater int
	ErrorHook func(effect string, kind EventKind, err error)
}

// HighWaterDepth reports the deepest nesting level reached across every
// Dispatch call so far, for the host's observability layer.
func (d *Dispatcher) HighWaterDepth() int { return d.highWater }

// NewDispatcher builds a Dispatcher bound to host (the Battle itself,
// which implements fxlang.Host).
func NewDispatcher(reg *Registry, host fxlang.Host, maxDepth int) *Dispatcher {
	return &Dispatcher{Registry: reg, Eval: fxlang.NewEvaluator(host), MaxDepth: maxDepth}
}

// Dispatch runs every live listener for kind in order, combining return
// values per the event's quick-return policy. impl supplies the implicit
// context variables ($mon, $target, ...) for this dispatch.
func (d *Dispatcher) Dispatch(kind EventKind, impl map[string]fxlang.Value) (fxlang.Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.highWater {
		d.highWater = d.depth
	}
	if d.depth > d.MaxDepth {
		return fxlang.Value{}, &EngineInvariantError{Invariant: "dispatch depth", Detail: "stack overflow: nested event dispatch exceeded the configured cap"}
	}

	def, ok := eventDefs[kind]
	if !ok {
		return fxlang.Value{}, fmt.Errorf("battle: unknown event kind %q", kind)
	}

	listeners := d.Registry.collect(kind)
	result := fxlang.Undefined()
	haveResult := false

	for _, l := range listeners {
		ctx := fxlang.NewContext(def.Flags, impl)
		v, err := d.Eval.Run(ctx, l.Program)
		if err != nil {
			// EffectRuntimeError policy (spec.md §7): log and no-op this
			// listener, keep going.
			d.logRuntimeError(l.EffectName, kind, err)
			continue
		}
		if !v.IsDefined() {
			continue
		}
		switch def.Policy {
		case PolicyFirstNonNull:
			return v, nil
		case PolicyBooleanAnd:
			b, _ := v.AsBool()
			if !haveResult {
				result, haveResult = fxlang.Bool(b), true
			} else {
				rb, _ := result.AsBool()
				result = fxlang.Bool(rb && b)
			}
			if !b {
				return result, nil
			}
		case PolicyBooleanOr:
			b, _ := v.AsBool()
			if !haveResult {
				result, haveResult = fxlang.Bool(b), true
			} else {
				rb, _ := result.AsBool()
				result = fxlang.Bool(rb || b)
			}
			if b {
				return result, nil
			}
		case PolicySum:
			if !haveResult {
				result, haveResult = v, true
			} else {
				result, err = fxlang.Arith('+', result, v)
				if err != nil {
					return fxlang.Value{}, err
				}
			}
		case PolicyProduct:
			if !haveResult {
				result, haveResult = v, true
			} else {
				result, err = fxlang.Arith('*', result, v)
				if err != nil {
					return fxlang.Value{}, err
				}
			}
		}
	}
	if !haveResult {
		return fxlang.Undefined(), nil
	}
	return result, nil
}

func (d *Dispatcher) logRuntimeError(effect string, kind EventKind, err error) {
	if d.ErrorHook != nil {
		d.ErrorHook(effect, kind, err)
	}
}
