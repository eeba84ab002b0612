package hsm

import "sort"

// Transition is the tuple (toState, action?, guard?) a TransitionTable
// associates with a (fromState, event) key (§3). Action is an effect
// invoked between exit and entry; Guard is a predicate gating the
// transition. A missing Guard means "always taken". Internal marks a
// same-state transition that skips exit/entry (§4.1, and the Internal-
// transitions open question in §9).
type Transition struct {
	To       node
	Action   func(Event)
	Guard    func(Event) bool
	Internal bool
}

// TransitionOption configures a Transition at declaration time, mirroring
// the fluent builder shape used throughout this lineage's dispatch layer.
type TransitionOption func(*Transition)

// WithAction sets the transition's action.
func WithAction(f func(Event)) TransitionOption {
	return func(t *Transition) { t.Action = f }
}

// WithGuard sets the transition's guard.
func WithGuard(f func(Event) bool) TransitionOption {
	return func(t *Transition) { t.Guard = f }
}

// Internal marks the transition internal: it must be a self-transition
// (fromState == toState); the caller is responsible for that invariant, as
// TransitionTable.Add has no access to the "from" node once stored. Internal
// transitions skip exit/entry (§4.1).
func Internal() TransitionOption {
	return func(t *Transition) { t.Internal = true }
}

type tableKey struct {
	from  int64
	event EventID
}

type tableEntry struct {
	fromName string
	toName   string
	event    EventID
	trans    *Transition
}

// TransitionTable is a mapping (fromState, event) -> Transition, keyed by
// stable node ids rather than pointers (§4.3). Keys are unique; a later Add
// for the same (fromState, event) overwrites the earlier one. The table
// also tracks the set of event ids it recognizes, used by OrthogonalHSM
// routing (§4.7).
type TransitionTable struct {
	byKey   map[tableKey]*Transition
	order   map[tableKey]int
	entries []tableEntry
}

// NewTransitionTable returns an empty table.
func NewTransitionTable() *TransitionTable {
	return &TransitionTable{
		byKey: make(map[tableKey]*Transition),
		order: make(map[tableKey]int),
	}
}

// Add declares a transition from "from" on "event" to the state produced by
// building a Transition with opts. Idempotent in effect on the recognized-
// event set; redeclaring the same (from, event) pair overwrites.
func (t *TransitionTable) Add(from node, event EventID, to node, opts ...TransitionOption) {
	tr := &Transition{To: to}
	for _, opt := range opts {
		opt(tr)
	}
	key := tableKey{from: from.nodeID(), event: event}
	entry := tableEntry{fromName: from.nodeName(), toName: to.nodeName(), event: event, trans: tr}
	if idx, ok := t.order[key]; ok {
		t.entries[idx] = entry
	} else {
		t.order[key] = len(t.entries)
		t.entries = append(t.entries, entry)
	}
	t.byKey[key] = tr
}

// Lookup returns the transition declared for (fromID, event), if any.
func (t *TransitionTable) Lookup(fromID int64, event EventID) (*Transition, bool) {
	tr, ok := t.byKey[tableKey{from: fromID, event: event}]
	return tr, ok
}

// RecognizedEvents returns the set of event ids for which at least one
// fromState has a table entry, sorted for deterministic iteration.
func (t *TransitionTable) RecognizedEvents() []EventID {
	seen := make(map[EventID]struct{})
	for k := range t.byKey {
		seen[k.event] = struct{}{}
	}
	out := make([]EventID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns the table's rows in declaration order (with later
// redeclarations of the same key appearing at their original position,
// holding their latest value). Used by the diagnostic Print format.
func (t *TransitionTable) Entries() []tableEntry {
	return t.entries
}

// Recognizes reports whether the table has any transition triggered by event.
func (t *TransitionTable) Recognizes(event EventID) bool {
	for k := range t.byKey {
		if k.event == event {
			return true
		}
	}
	return false
}
