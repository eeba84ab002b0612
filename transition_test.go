package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableLookupMiss(t *testing.T) {
	tbl := NewTransitionTable()
	_, ok := tbl.Lookup(999, 1)
	assert.False(t, ok)
}

func TestTransitionTableAddAndLookup(t *testing.T) {
	a := NewState("a")
	b := NewState("b")
	tbl := NewTransitionTable()
	tbl.Add(a, EventID(1), b)

	tr, ok := tbl.Lookup(a.nodeID(), 1)
	require.True(t, ok)
	assert.Same(t, node(b), tr.To)
}

func TestTransitionTableOverwriteSameKey(t *testing.T) {
	a := NewState("a")
	b := NewState("b")
	c := NewState("c")
	tbl := NewTransitionTable()
	tbl.Add(a, EventID(1), b)
	tbl.Add(a, EventID(1), c)

	tr, ok := tbl.Lookup(a.nodeID(), 1)
	require.True(t, ok)
	assert.Same(t, node(c), tr.To)
	assert.Len(t, tbl.Entries(), 1, "redeclaring the same key must not grow the table")
}

func TestTransitionTableRecognizedEvents(t *testing.T) {
	a := NewState("a")
	b := NewState("b")
	tbl := NewTransitionTable()
	tbl.Add(a, EventID(5), b)
	tbl.Add(b, EventID(2), a)
	tbl.Add(a, EventID(2), a, Internal())

	assert.Equal(t, []EventID{2, 5}, tbl.RecognizedEvents())
	assert.True(t, tbl.Recognizes(2))
	assert.True(t, tbl.Recognizes(5))
	assert.False(t, tbl.Recognizes(99))
}

func TestTransitionOptionsApply(t *testing.T) {
	a := NewState("a")
	b := NewState("b")
	tbl := NewTransitionTable()

	var actionRan bool
	tbl.Add(a, EventID(1), b,
		WithAction(func(Event) { actionRan = true }),
		WithGuard(func(Event) bool { return true }),
	)

	tr, ok := tbl.Lookup(a.nodeID(), 1)
	require.True(t, ok)
	require.NotNil(t, tr.Action)
	require.NotNil(t, tr.Guard)
	assert.True(t, tr.Guard(NewEvent(nil)))
	tr.Action(NewEvent(nil))
	assert.True(t, actionRan)
	assert.False(t, tr.Internal)
}

func TestInternalOptionMarksTransition(t *testing.T) {
	a := NewState("a")
	tbl := NewTransitionTable()
	tbl.Add(a, EventID(1), a, Internal())

	tr, ok := tbl.Lookup(a.nodeID(), 1)
	require.True(t, ok)
	assert.True(t, tr.Internal)
}
