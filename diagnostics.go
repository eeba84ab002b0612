package hsm

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders m's TransitionTable as one line per entry, in declaration
// order, in the form "<fromName>,<eventID>:<toName>" (§8, the print/parse
// round-trip testable property). It is a diagnostic aid, not a
// serialization format for reconstructing guards or actions: ParseTable
// recovers only the shape of the table (which state goes to which state on
// which event), not behavior attached to it.
func (m *StateMachine) Print() string {
	var b strings.Builder
	for _, ent := range m.table.Entries() {
		fmt.Fprintf(&b, "%s,%d:%s\n", ent.fromName, ent.event, ent.toName)
	}
	return b.String()
}

// TableRow is one parsed line of a Print'd table: the shape of a single
// transition with no attached guard, action, or Internal marker.
type TableRow struct {
	From  string
	Event EventID
	To    string
}

// ParseTable parses Print's output back into rows, in the same order. A
// malformed line (missing comma or colon, or a non-integer event id) is
// reported with the offending line number.
func ParseTable(s string) ([]TableRow, error) {
	var rows []TableRow
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		comma := strings.IndexByte(line, ',')
		colon := strings.IndexByte(line, ':')
		if comma < 0 || colon < 0 || colon < comma {
			return nil, fmt.Errorf("hsm: ParseTable: malformed entry at line %d: %q", i+1, line)
		}
		from := line[:comma]
		evStr := line[comma+1 : colon]
		to := line[colon+1:]
		ev, err := strconv.ParseInt(evStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hsm: ParseTable: bad event id at line %d: %w", i+1, err)
		}
		rows = append(rows, TableRow{From: from, Event: EventID(ev), To: to})
	}
	return rows, nil
}
