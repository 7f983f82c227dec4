package fxlang

import "fmt"

// ContextFlag identifies one of the implicit variables an event may make
// available to its callback programs (spec.md §4.2 "Evaluation contexts").
type ContextFlag int

const (
	FlagMon ContextFlag = 1 << iota
	FlagTarget
	FlagSource
	FlagUser
	FlagEffect
	FlagMove
	FlagEffectState
	FlagThis
)

// in reports whether a flag set requests the given variable.
func (f ContextFlag) in(set ContextFlag) bool { return set&f != 0 }

// Context is the full environment a single program execution runs in: the
// implicit variables populated by the dispatcher from the event's flag
// set, plus user-assigned locals created by `$var = expr` / `foreach`.
type Context struct {
	flags ContextFlag
	impl  map[string]Value
	local map[string]Value
}

// NewContext builds a Context for a dispatch that requests the given
// implicit variables. Each supplied value must correspond to a set flag;
// a flag left out of `flags` must not be referenced by the program (spec.md:
// "a missing required variable is a runtime error").
func NewContext(flags ContextFlag, impl map[string]Value) *Context {
	if impl == nil {
		impl = map[string]Value{}
	}
	return &Context{flags: flags, impl: impl, local: map[string]Value{}}
}

// known implicit variable names, used to distinguish "declared but wrong
// name" from "valid name but not requested by this event" in error text.
var implicitNames = map[string]ContextFlag{
	"mon":          FlagMon,
	"target":       FlagTarget,
	"source":       FlagSource,
	"user":         FlagUser,
	"effect":       FlagEffect,
	"move":         FlagMove,
	"effect_state": FlagEffectState,
	"this":         FlagThis,
}

// Get resolves a `$name` reference: implicit context variables first
// (gated by the flag set), then user-assigned locals.
func (c *Context) Get(name string) (Value, error) {
	if flag, ok := implicitNames[name]; ok {
		if !flag.in(c.flags) {
			return Value{}, fmt.Errorf("fxlang: $%s is not available to this event", name)
		}
		v, ok := c.impl[name]
		if !ok {
			return Value{}, fmt.Errorf("fxlang: $%s was not populated for this dispatch", name)
		}
		return v, nil
	}
	if v, ok := c.local[name]; ok {
		return v, nil
	}
	return Value{}, fmt.Errorf("fxlang: undefined variable $%s", name)
}

// Set assigns a user local. Implicit variable names are read-only from
// script (the evaluator surfaces host mutation through member assignment
// instead), so assigning over one shadows it as a local for the rest of
// this execution — matching a tree-walker with ordinary lexical scoping.
func (c *Context) Set(name string, v Value) {
	c.local[name] = v
}

// snapshotLocal/restoreLocal support foreach's fresh-binding-per-item
// semantics without leaking the loop variable's final value oddly; we
// keep it simple and just overwrite/restore.
func (c *Context) snapshotLocal(name string) (Value, bool) {
	v, ok := c.local[name]
	return v, ok
}

func (c *Context) restoreLocal(name string, v Value, had bool) {
	if had {
		c.local[name] = v
	} else {
		delete(c.local, name)
	}
}
