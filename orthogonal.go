package hsm

import "sync"

// OrthogonalHSM composes two peer StateMachines, A and B, that run as
// siblings sharing one EventQueue rather than one containing the other
// (§4.7). It is itself a node, so it can be the target of an enclosing
// machine's transition: entering it starts both peers, in order A then B,
// then runs its own execute; exiting it stops B then A, then itself.
//
// Routing an event that reaches an OrthogonalHSM works by recognized-event
// set: A is offered the event first if A's table recognizes it; otherwise
// B is offered it if B's recognizes it. If neither recognizes it, the
// OrthogonalHSM reports the event unhandled to its own caller, which will
// in turn walk further up the ancestor chain (dispatchAt). A wins ties
// where both recognize it.
type OrthogonalHSM struct {
	Name string

	id int64
	A  *StateMachine
	B  *StateMachine

	mu      sync.RWMutex
	running bool
}

// NewOrthogonalHSM composes a and b under one id. a and b must have been
// built sharing the same EventQueue (typically via WithParent against a
// common ancestor, or WithEventQueue against the same queue explicitly);
// NewOrthogonalHSM does not itself enforce this, mirroring the ownership
// invariants the rest of this package only documents rather than checks.
func NewOrthogonalHSM(name string, a, b *StateMachine) *OrthogonalHSM {
	return &OrthogonalHSM{Name: name, id: nextNodeID(), A: a, B: b}
}

func (o *OrthogonalHSM) nodeID() int64    { return o.id }
func (o *OrthogonalHSM) nodeName() string { return o.Name }

// onEntry starts A then B (§4.7 entry ordering), logging rather than
// propagating either peer's start failure: like StateMachine.onEntry, the
// enclosing transition that reached this node has already committed.
func (o *OrthogonalHSM) onEntry(e Event) {
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	if err := o.A.Start(); err != nil {
		o.A.logger.Error("orthogonal peer A failed to start", "orthogonal", o.Name, "error", err)
	}
	if err := o.B.Start(); err != nil {
		o.B.logger.Error("orthogonal peer B failed to start", "orthogonal", o.Name, "error", err)
	}
}

// onExit stops B then A: exit order is the mirror of entry order.
func (o *OrthogonalHSM) onExit(e Event) {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	_ = o.B.Stop()
	_ = o.A.Stop()
}

// execute gives each peer one non-blocking dispatch pass, A first, mirroring
// StateMachine.execute's "run any pending work now" contract for a newly
// entered composite.
func (o *OrthogonalHSM) execute() {
	_, _ = o.A.Step()
	_, _ = o.B.Step()
}

// dispatch routes e to whichever peer's table recognizes it, A first. If
// neither recognizes it, handled is false and the caller (StateMachine.
// tryDispatch, as part of dispatchAt's ancestor walk) continues upward.
//
// Before trying a peer's table directly, dispatch requeues e to the front
// of the shared queue and lets that peer run its own Step: this is the one
// place this package performs the literal "push to front, yield to the
// other dispatcher" mechanism described in §4.7 step 3, since the retry
// genuinely crosses from this OrthogonalHSM's routing logic into a peer
// StateMachine's own dispatch loop rather than continuing up one ancestor
// chain (contrast dispatchAt's ancestor walk in statemachine.go).
func (o *OrthogonalHSM) dispatch(e Event) (handled bool, err error) {
	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()
	if !running {
		return false, nil
	}

	first, second := o.A, o.B
	if !o.recognizes(first, e) && o.recognizes(second, e) {
		first, second = second, first
	}

	if o.recognizes(first, e) {
		first.queue.AddFront(e)
		done, err := first.Step()
		_ = done
		return true, err
	}
	if o.recognizes(second, e) {
		second.queue.AddFront(e)
		done, err := second.Step()
		_ = done
		return true, err
	}
	return false, nil
}

func (o *OrthogonalHSM) recognizes(peer *StateMachine, e Event) bool {
	return peer.table.Recognizes(e.ID)
}
