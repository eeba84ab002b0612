package hsm

import (
	"sync"
	"sync/atomic"
)

// lifecycle is the meta-state-machine every StateMachine itself obeys (§4.8):
// Idle -(Start)-> Running -(Stop / reaches stopState)-> Idle, or
// Running -(ActionFault / unexpected interruption)-> Terminated -(Reset)-> Idle.
type lifecycle int32

const (
	lcIdle lifecycle = iota
	lcRunning
	lcTerminated
)

func (l lifecycle) String() string {
	switch l {
	case lcIdle:
		return "Idle"
	case lcRunning:
		return "Running"
	case lcTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// StateMachine is the dispatcher (§4.1). It owns a TransitionTable, a
// current state, and a reference to the EventQueue it shares with its root
// and every descendant. A StateMachine is itself a node, so it can be the
// target of a transition declared by an ancestor: entering it starts a
// nested dispatcher whose own current state is the true active leaf.
//
// StateMachine is policy-agnostic: it knows how to perform one dispatch
// iteration (RunOnce, Step) but never spawns a goroutine itself. Driving the
// loop, synchronously or asynchronously, is SyncPolicy/AsyncPolicy's job
// (policy.go); this mirrors the dispatcher/policy split in the component
// design (§2) and keeps the "optional worker-thread handle" attribute of §3
// out of the dispatcher proper.
type StateMachine struct {
	Name string

	id int64

	parent     *StateMachine
	startState node
	stopState  node

	table  *TransitionTable
	queue  *EventQueue
	logger Logger

	mu           sync.RWMutex
	currentState lifecycleState

	interrupted atomic.Bool
}

// lifecycleState bundles the two fields that must change atomically with
// respect to each other under mu: the active node and the meta-state.
type lifecycleState struct {
	node  node
	phase lifecycle
}

// Option configures a StateMachine at construction time.
type Option func(*StateMachine)

// WithParent makes the built machine a child of p, sharing p's EventQueue
// unless WithEventQueue overrides that.
func WithParent(p *StateMachine) Option {
	return func(m *StateMachine) { m.parent = p }
}

// WithStartState sets the state entered by Start.
func WithStartState(s node) Option {
	return func(m *StateMachine) { m.startState = s }
}

// WithStopState marks a state that, once reached, halts the machine as if
// Stop had been called (§3, §4.1 step 1).
func WithStopState(s node) Option {
	return func(m *StateMachine) { m.stopState = s }
}

// WithMachineLogger overrides the default slog-backed Logger.
func WithMachineLogger(l Logger) Option {
	return func(m *StateMachine) { m.logger = l }
}

// WithEventQueue overrides the queue the machine uses. Root machines default
// to a fresh queue; non-root machines default to their parent's. A
// machine built with WithParent and an explicit WithEventQueue that differs
// from the parent's queue is a distinct dispatch domain sharing no ordering
// guarantees with its nominal parent — supported, but unusual.
func WithEventQueue(q *EventQueue) Option {
	return func(m *StateMachine) { m.queue = q }
}

// NewStateMachine builds a StateMachine. Transitions are added afterward
// via Add; the machine is not runnable until Start is called.
func NewStateMachine(name string, opts ...Option) *StateMachine {
	m := &StateMachine{
		Name:   name,
		id:     nextNodeID(),
		table:  NewTransitionTable(),
		logger: NewSlogLogger(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.queue == nil {
		if m.parent != nil {
			m.queue = m.parent.queue
		} else {
			m.queue = NewEventQueue()
		}
	}
	return m
}

// Add declares a transition in this machine's table. See TransitionTable.Add.
func (m *StateMachine) Add(from node, event EventID, to node, opts ...TransitionOption) {
	m.table.Add(from, event, to, opts...)
}

// Table exposes the underlying TransitionTable, e.g. for Print.
func (m *StateMachine) Table() *TransitionTable {
	return m.table
}

// Queue returns the EventQueue this machine dispatches against.
func (m *StateMachine) Queue() *EventQueue {
	return m.queue
}

func (m *StateMachine) isRoot() bool { return m.parent == nil }

// Lifecycle reports the machine's current meta-state (§4.8).
func (m *StateMachine) Lifecycle() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState.phase.String()
}

// CurrentState returns the active node, or nil if the machine is Idle. A
// Terminated machine still reports the last state it committed to. External callers typically compare it for identity against a
// *State or *StateMachine they hold, or type-assert it for its Name.
func (m *StateMachine) CurrentState() node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState.node
}

// CurrentStateName is a convenience accessor over CurrentState.
func (m *StateMachine) CurrentStateName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentState.node == nil {
		return ""
	}
	return m.currentState.node.nodeName()
}

// SendEvent enqueues e at the back of the shared queue (§4.5, fire-and-
// forget). It is safe to call from any goroutine, Running or not; events
// sent before Start or after Stop simply accumulate until a dispatcher is
// again draining the queue.
func (m *StateMachine) SendEvent(e Event) {
	m.queue.AddBack(e)
}

// Start transitions Idle -> Running, sets currentState to startState, and
// runs its onEntry hook with NullEvent. Returns ErrInvalidLifecycle if the
// machine is not Idle.
func (m *StateMachine) Start() (err error) {
	m.mu.Lock()
	if m.currentState.phase != lcIdle {
		m.mu.Unlock()
		return ErrInvalidLifecycle
	}
	m.currentState = lifecycleState{node: m.startState, phase: lcRunning}
	start := m.startState
	m.mu.Unlock()

	m.interrupted.Store(false)

	defer func() {
		if r := recover(); r != nil {
			fault := &ActionFaultError{Machine: m.Name, State: start.nodeName(), Event: nullEventID, Panic: r}
			m.logger.Error("action fault on start", "error", fault)
			m.forceTerminate()
			err = fault
		}
	}()
	start.onEntry(NullEvent)
	return nil
}

// Stop transitions Running -> Idle: sets the local interrupt flag and, if
// this is the root machine, stops the shared EventQueue so any RunOnce
// blocked in EventQueue.Next wakes and returns done=true. Non-root machines never touch the
// queue directly; stopping a nested composite only resets its own state.
func (m *StateMachine) Stop() error {
	m.mu.Lock()
	if m.currentState.phase != lcRunning {
		m.mu.Unlock()
		return ErrInvalidLifecycle
	}
	m.currentState = lifecycleState{phase: lcIdle}
	m.mu.Unlock()

	m.interrupted.Store(true)
	if m.isRoot() {
		m.queue.Stop()
	}
	return nil
}

// Reset transitions Terminated -> Idle, clearing the fault condition so the
// machine can be Started again. For a root machine it also resets the
// shared EventQueue.
func (m *StateMachine) Reset() error {
	m.mu.Lock()
	if m.currentState.phase != lcTerminated {
		m.mu.Unlock()
		return ErrInvalidLifecycle
	}
	m.currentState = lifecycleState{phase: lcIdle}
	m.mu.Unlock()

	m.interrupted.Store(false)
	if m.isRoot() {
		m.queue.Reset()
	}
	return nil
}

func (m *StateMachine) stopStateReached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopState != nil && m.currentState.node != nil &&
		m.currentState.node.nodeID() == m.stopState.nodeID()
}

// haltGracefully implements §4.1 step 1: reaching stopState ends the run
// the same way an explicit Stop does.
func (m *StateMachine) haltGracefully() {
	m.mu.Lock()
	m.currentState = lifecycleState{phase: lcIdle}
	m.mu.Unlock()

	m.interrupted.Store(true)
	if m.isRoot() {
		m.queue.Stop()
	}
}

// forceTerminate is the ActionFault / unexpected-interruption path (§7):
// the machine moves to Terminated and requires an explicit Reset.
func (m *StateMachine) forceTerminate() {
	m.mu.Lock()
	// Only the phase changes: currentState.node is left exactly as it was,
	// so CurrentState still reports the last state the machine actually
	// committed to (§9, ActionFault policy — partial transitions never
	// commit toState, and a fault never erases the prior commit either).
	m.currentState.phase = lcTerminated
	m.mu.Unlock()

	m.interrupted.Store(true)
	if m.isRoot() {
		m.queue.Stop()
	}
}

// RunOnce blocks until an event is available on the shared queue (or the
// queue stops), then dispatches exactly one event. done reports whether the
// dispatcher loop driving this machine should stop calling RunOnce. Used by
// AsyncPolicy.
func (m *StateMachine) RunOnce() (done bool, err error) {
	if m.stopStateReached() {
		m.haltGracefully()
		return true, nil
	}
	e, qerr := m.queue.Next()
	if qerr != nil {
		return m.handleQueueInterrupted()
	}
	return m.dispatchEvent(e)
}

// Step performs at most one dispatcher iteration without ever blocking: if
// the queue is currently empty it returns immediately with done=false. Used
// by SyncPolicy, and internally by composite execute().
func (m *StateMachine) Step() (done bool, err error) {
	if m.stopStateReached() {
		m.haltGracefully()
		return true, nil
	}
	e, ok := m.queue.TryNext()
	if !ok {
		return false, nil
	}
	return m.dispatchEvent(e)
}

func (m *StateMachine) handleQueueInterrupted() (bool, error) {
	if m.interrupted.Load() {
		return true, nil
	}
	// The shared queue stopped for a reason other than this machine's own
	// Stop/haltGracefully (e.g. a sibling or ancestor stopped it first).
	// Treat that as an ActionFault-grade condition: move to Terminated and
	// require an explicit Reset, surfacing ErrInterrupted to the caller.
	m.forceTerminate()
	return true, ErrInterrupted
}

func (m *StateMachine) dispatchEvent(e Event) (done bool, err error) {
	if derr := dispatchAt(m, e); derr != nil {
		return true, derr
	}
	return false, nil
}

func (m *StateMachine) nodeID() int64    { return m.id }
func (m *StateMachine) nodeName() string { return m.Name }

// onEntry implicitly starts the nested dispatcher (§3: "entering a
// composite state implicitly runs its own start"). A failure to start
// (double-entry, or a fault in the nested startState's own entry hook)
// is logged rather than propagated: the outer transition that is entering
// this composite has already committed.
func (m *StateMachine) onEntry(e Event) {
	if err := m.Start(); err != nil {
		m.logger.Error("composite entry failed to start", "machine", m.Name, "error", err)
	}
}

// onExit unwinds the nested dispatcher without touching the shared queue:
// a composite being exited by its parent is not the queue's owner.
func (m *StateMachine) onExit(e Event) {
	m.mu.Lock()
	m.currentState = lifecycleState{phase: lcIdle}
	m.mu.Unlock()
	m.interrupted.Store(true)
}

// execute performs a single non-blocking dispatch pass against the shared
// queue if an event is already pending. It never blocks: a composite state
// newly entered runs at most one unit of queued work per outer dispatch
// iteration rather than spinning its own loop, since there is exactly one
// worker per root machine (§5).
func (m *StateMachine) execute() {
	e, ok := m.queue.TryNext()
	if !ok {
		return
	}
	if err := dispatchAt(m, e); err != nil {
		m.logger.Error("execute dispatch fault", "machine", m.Name, "error", err)
	}
}

// deepestActive walks down through nested StateMachine composites to find
// the machine whose own currentState is not itself a running StateMachine.
// Descent stops at a leaf State or at an OrthogonalHSM, both of which are
// handled directly by tryDispatch at the level that holds them.
func deepestActive(m *StateMachine) *StateMachine {
	cur := m
	for {
		cur.mu.RLock()
		cs := cur.currentState.node
		cur.mu.RUnlock()

		child, ok := cs.(*StateMachine)
		if !ok {
			return cur
		}
		child.mu.RLock()
		running := child.currentState.phase == lcRunning
		child.mu.RUnlock()
		if !running {
			return cur
		}
		cur = child
	}
}

// tryDispatch attempts to handle e against m's own current state, without
// consulting ancestors. When currentState is an OrthogonalHSM, its peers get
// first refusal (innermost-first, as with any nested composite): only if
// neither A nor B recognizes e does tryDispatch fall back to m's own table,
// keyed by the OrthogonalHSM's id, for an escape transition out of the
// orthogonal region as a whole. handled is false if neither the peers nor
// m's own table has an entry for (currentState, e.ID).
func (m *StateMachine) tryDispatch(e Event) (handled bool, err error) {
	m.mu.RLock()
	cs := m.currentState.node
	m.mu.RUnlock()
	if cs == nil {
		return false, nil
	}

	if orth, ok := cs.(*OrthogonalHSM); ok {
		handled, err := orth.dispatch(e)
		if err != nil || handled {
			return handled, err
		}
		// fall through to m's own table for an escape transition
	}

	tr, ok := m.table.Lookup(cs.nodeID(), e.ID)
	if !ok {
		return false, nil
	}
	return true, m.applyTransition(cs, tr, e)
}

// applyTransition runs one transition to completion: guard, exit, action,
// entry, currentState update, execute (§4.1 steps 5-6). A panic from any
// hook is recovered as an ActionFault, which terminates the owning machine.
func (m *StateMachine) applyTransition(from node, tr *Transition, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fault := &ActionFaultError{Machine: m.Name, State: from.nodeName(), Event: e.ID, Panic: r}
			m.logger.Error("action fault", "error", fault)
			m.forceTerminate()
			err = fault
		}
	}()

	if tr.Guard != nil && !tr.Guard(e) {
		m.logger.Debug("guard rejected", "machine", m.Name, "state", from.nodeName(), "event", e.ID, "error", ErrGuardRejected)
		return nil
	}

	if tr.Internal {
		if tr.Action != nil {
			tr.Action(e)
		}
		return nil
	}

	from.onExit(e)
	if tr.Action != nil {
		tr.Action(e)
	}
	tr.To.onEntry(e)

	// currentState only commits once exit/action/entry have all run without
	// panicking: a fault recovered above this point leaves the machine
	// still reporting its pre-transition state (§9, ActionFault policy).
	m.mu.Lock()
	m.currentState = lifecycleState{node: tr.To, phase: lcRunning}
	m.mu.Unlock()

	tr.To.execute()
	return nil
}

// dispatchAt implements parent propagation (§4.1 step 4): find the deepest
// active leaf under m, try its table, and on a miss walk up through each
// ancestor's table in turn. This is behaviorally equivalent to pushing the
// event to the shared queue's front and yielding to the parent's own
// dispatch pass — which the spec describes as the propagation mechanism —
// because dispatch inside one root is strictly sequential (§5): nothing
// else can run between "C declines" and "P tries next" regardless of which
// of the two equivalent mechanics performs the retry. AddFront itself is
// still exercised directly by OrthogonalHSM routing (§4.7), where the retry
// genuinely crosses to a different peer machine rather than up the same
// ancestor chain.
func dispatchAt(m *StateMachine, e Event) error {
	leaf := deepestActive(m)
	for cur := leaf; cur != nil; cur = cur.parent {
		handled, err := cur.tryDispatch(e)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	root := leaf
	for root.parent != nil {
		root = root.parent
	}
	unhandled := &UnhandledEventError{Machine: root.Name, State: leaf.CurrentStateName(), Event: e.ID}
	root.logger.Warn("unhandled event", "error", unhandled)
	return nil
}
