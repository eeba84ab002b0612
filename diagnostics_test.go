package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintParseRoundTrip(t *testing.T) {
	closed := NewState("Closed")
	ready := NewState("Ready")
	bound := NewState("Bound")
	listening := NewState("Listening")

	sm := NewStateMachine("socket", WithStartState(closed), WithMachineLogger(NoopLogger{}))
	sm.Add(closed, evSockOpen, ready)
	sm.Add(ready, evBind, bound)
	sm.Add(bound, evListen, listening)
	sm.Add(listening, evAccept, listening)
	sm.Add(listening, evClose, closed)

	printed := sm.Print()
	rows, err := ParseTable(printed)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	want := []TableRow{
		{From: "Closed", Event: evSockOpen, To: "Ready"},
		{From: "Ready", Event: evBind, To: "Bound"},
		{From: "Bound", Event: evListen, To: "Listening"},
		{From: "Listening", Event: evAccept, To: "Listening"},
		{From: "Listening", Event: evClose, To: "Closed"},
	}
	assert.Equal(t, want, rows)
}

func TestParseTableRejectsMalformedLine(t *testing.T) {
	_, err := ParseTable("not a valid line\n")
	assert.Error(t, err)
}

func TestParseTableRejectsBadEventID(t *testing.T) {
	_, err := ParseTable("a,x:b\n")
	assert.Error(t, err)
}

func TestParseTableSkipsBlankLines(t *testing.T) {
	rows, err := ParseTable("\na,1:b\n\n")
	require.NoError(t, err)
	assert.Equal(t, []TableRow{{From: "a", Event: 1, To: "b"}}, rows)
}
