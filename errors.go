package hsm

import (
	"errors"
	"fmt"
)

// Error kinds returned by the dispatcher and the execution policies (§7).
// ErrInterrupted (queue.go) is the fifth kind; it is raised by EventQueue
// rather than by the dispatcher directly.
var (
	// ErrInvalidLifecycle is returned by Start/Stop on a double-start,
	// stop-before-start, or any other meta-state-machine violation (§4.8).
	// No state change is made.
	ErrInvalidLifecycle = errors.New("hsm: invalid lifecycle transition")

	// ErrGuardRejected is never returned to SendEvent/Step/RunOnce callers —
	// guard rejection is silent to the dispatcher, per §7 — but is logged as
	// the "error" attribute of applyTransition's guard-rejected Debug entry,
	// so a structured-logging backend can filter or alert on it by value.
	ErrGuardRejected = errors.New("hsm: guard rejected transition")
)

// UnhandledEventError reports that no transition exists for (state, event)
// at the root of an HSM tree. It is logged and the event is discarded; it
// is never returned to callers of SendEvent, since sending is
// fire-and-forget, but the dispatcher loop reports it to the Logger.
type UnhandledEventError struct {
	Machine string
	State   string
	Event   EventID
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("hsm: unhandled event %d in state %q of machine %q", e.Event, e.State, e.Machine)
}

// ActionFaultError wraps a panic recovered from a guard, action, entry, or
// exit hook. Recovering it moves the owning StateMachine to Terminated and
// stops its event queue (§7, §9).
type ActionFaultError struct {
	Machine string
	State   string
	Event   EventID
	Panic   any
}

func (e *ActionFaultError) Error() string {
	return fmt.Sprintf("hsm: action fault in machine %q, state %q, event %d: %v", e.Machine, e.State, e.Event, e.Panic)
}
