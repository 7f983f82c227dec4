package battle

import (
	"fmt"

	"github.com/pkg/errors"
)

// The engine's error taxonomy. Each kind carries a distinct recovery
// policy, enforced by callers rather than by the error type itself:
// StaticError aborts loading, InvalidChoice re-prompts the same request,
// EffectRuntimeError no-ops the triggering effect and continues the
// battle, EngineInvariantError is fatal, PeerNotConnected belongs to the
// wamp package only.
type StaticError struct {
	Where string
	Err   error
}

func (e *StaticError) Error() string { return fmt.Sprintf("static error in %s: %v", e.Where, e.Err) }
func (e *StaticError) Unwrap() error { return e.Err }

// NewStaticError wraps err with a stack trace (via github.com/pkg/errors)
// before attaching it to a StaticError, so a host logging the error gets
// the construction-time call stack rather than just the message.
func NewStaticError(where string, err error) *StaticError {
	return &StaticError{Where: where, Err: errors.WithStack(err)}
}

// InvalidChoice is returned to the host when a submitted Choice does not
// satisfy the outstanding Request. The battle stays parked on the same
// request until a legal choice arrives.
type InvalidChoice struct {
	PlayerID string
	Reason   string
}

func (e *InvalidChoice) Error() string {
	return fmt.Sprintf("invalid choice from %s: %s", e.PlayerID, e.Reason)
}

// EffectRuntimeError wraps an fxlang evaluation failure. The dispatcher
// catches these at the callback boundary, logs them, and treats the
// triggering effect as having done nothing observable.
type EffectRuntimeError struct {
	EffectName string
	Event      EventKind
	Err        error
}

func (e *EffectRuntimeError) Error() string {
	return fmt.Sprintf("effect runtime error: %s/%s: %v", e.EffectName, e.Event, e.Err)
}
func (e *EffectRuntimeError) Unwrap() error { return e.Err }

// EngineInvariantError means a state invariant was violated: this is a
// bug, not a recoverable condition. The caller must abort the battle.
type EngineInvariantError struct {
	Invariant string
	Detail    string
}

func (e *EngineInvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated (%s): %s", e.Invariant, e.Detail)
}
