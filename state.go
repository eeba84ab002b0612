package hsm

import "sync/atomic"

// nodeSeq allocates stable node ids for states and machines. Identity for
// TransitionTable lookups is taken from this id, not from a pointer, so
// relocating or copying node storage never invalidates a table entry.
var nodeSeq int64

func nextNodeID() int64 {
	return atomic.AddInt64(&nodeSeq, 1)
}

// node is the capability set shared by every tree member usable as a
// transition source or target: a leaf State, a composite StateMachine, or
// an OrthogonalHSM. Rather than deep inheritance, the hierarchy is a tagged
// variant of node kinds dispatched through this single interface (§9).
type node interface {
	nodeID() int64
	nodeName() string
	onEntry(Event)
	onExit(Event)
	execute()
}

// State is a leaf node in the HSM tree. It carries a human-readable name, a
// stable id, and the entry/exit hooks run as part of a transition. Leaf
// execute is always a no-op; only composite nodes (StateMachine,
// OrthogonalHSM) run work on entry via execute.
type State struct {
	Name string

	id          int64
	entry, exit func(Event)
}

// StateOption configures a State at construction time.
type StateOption func(*State)

// WithEntry sets the entry hook, invoked with the triggering event whenever
// the state is entered.
func WithEntry(f func(Event)) StateOption {
	return func(s *State) { s.entry = f }
}

// WithExit sets the exit hook, invoked with the triggering event whenever
// the state is exited.
func WithExit(f func(Event)) StateOption {
	return func(s *State) { s.exit = f }
}

// NewState builds a leaf State. The returned State may be referenced by
// many transition entries but is owned by whichever StateMachine declares
// it (§3, ownership invariants).
func NewState(name string, opts ...StateOption) *State {
	s := &State{Name: name, id: nextNodeID()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the stable identifier TransitionTable keys against. Exposed so
// external packages (e.g. internal/config) can build table keys without
// reaching into this package's unexported node interface.
func (s *State) ID() int64 { return s.id }

func (s *State) nodeID() int64     { return s.id }
func (s *State) nodeName() string  { return s.Name }
func (s *State) onEntry(e Event)   { runHook(s.entry, e) }
func (s *State) onExit(e Event)    { runHook(s.exit, e) }
func (s *State) execute()          {}

func runHook(f func(Event), e Event) {
	if f != nil {
		f(e)
	}
}
