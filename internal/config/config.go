// Package config loads a declarative transition table from YAML, grounded
// on this lineage's MachineConfig/StateConfig pattern (formerly
// internal/primitives), narrowed to the flat (non-hierarchical, non-SCXML)
// shape this runtime's TransitionTable actually has.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/hsmrt"
)

// TransitionSpec is one declarative row: state "From" reacts to "Event" by
// moving to state "To". Guards and actions are not expressible in YAML —
// they are Go closures — so a loaded table is always behaviorally inert
// until the caller attaches them via Build's returned state map.
type TransitionSpec struct {
	From     string `yaml:"from"`
	Event    string `yaml:"event"`
	To       string `yaml:"to"`
	Internal bool   `yaml:"internal,omitempty"`
}

// TableSpec is the top-level document: the set of state names the table
// refers to, the event name -> id assignment, and the transition rows.
type TableSpec struct {
	States      []string         `yaml:"states"`
	Events      map[string]int64 `yaml:"events"`
	Transitions []TransitionSpec `yaml:"transitions"`
}

// Validate checks internal consistency: every transition's From/To names
// are declared in States, and every transition's Event name is declared in
// Events. It does not (cannot) check reachability or guard/action
// correctness, both of which only exist once Go code attaches them.
func (s *TableSpec) Validate() error {
	if len(s.States) == 0 {
		return fmt.Errorf("hsm/config: states list is required and cannot be empty")
	}
	known := make(map[string]struct{}, len(s.States))
	for _, name := range s.States {
		known[name] = struct{}{}
	}
	for i, t := range s.Transitions {
		if _, ok := known[t.From]; !ok {
			return fmt.Errorf("hsm/config: transition %d: unknown from-state %q", i, t.From)
		}
		if _, ok := known[t.To]; !ok {
			return fmt.Errorf("hsm/config: transition %d: unknown to-state %q", i, t.To)
		}
		if _, ok := s.Events[t.Event]; !ok {
			return fmt.Errorf("hsm/config: transition %d: unknown event %q", i, t.Event)
		}
	}
	return nil
}

// Parse unmarshals a YAML document into a TableSpec and validates it.
func Parse(doc []byte) (*TableSpec, error) {
	var spec TableSpec
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return nil, fmt.Errorf("hsm/config: parse: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Build materializes spec's named states as *hsm.State values (returned in
// a name-keyed map for the caller to attach entry/exit hooks to
// afterward), and populates dst's TransitionTable from spec's transition
// rows. Guards and actions are never set by Build; callers needing them
// should look the relevant *hsm.State up in the returned map and call
// dst.Add again with TransitionOptions, which overwrites the bare row
// Build declared (TransitionTable.Add's redeclare-overwrites semantics).
func Build(spec *TableSpec, dst *hsm.StateMachine) (map[string]*hsm.State, error) {
	states := make(map[string]*hsm.State, len(spec.States))
	for _, name := range spec.States {
		states[name] = hsm.NewState(name)
	}

	for i, t := range spec.Transitions {
		from, ok := states[t.From]
		if !ok {
			return nil, fmt.Errorf("hsm/config: transition %d: unknown from-state %q", i, t.From)
		}
		to, ok := states[t.To]
		if !ok {
			return nil, fmt.Errorf("hsm/config: transition %d: unknown to-state %q", i, t.To)
		}
		eventID, ok := spec.Events[t.Event]
		if !ok {
			return nil, fmt.Errorf("hsm/config: transition %d: unknown event %q", i, t.Event)
		}
		var opts []hsm.TransitionOption
		if t.Internal {
			opts = append(opts, hsm.Internal())
		}
		dst.Add(from, hsm.EventID(eventID), to, opts...)
	}

	return states, nil
}
