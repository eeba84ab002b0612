package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	evA1 EventID = iota + 1
	evA2
	evB1
)

func TestOrthogonalRoutingNoCrossTalk(t *testing.T) {
	rootA := NewState("rootA")
	a := NewStateMachine("A", WithStartState(rootA), WithMachineLogger(NoopLogger{}))
	var aSeen []EventID
	a.Add(rootA, evA1, rootA, Internal(), WithAction(func(e Event) { aSeen = append(aSeen, e.ID) }))
	a.Add(rootA, evA2, rootA, Internal(), WithAction(func(e Event) { aSeen = append(aSeen, e.ID) }))

	rootB := NewState("rootB")
	b := NewStateMachine("B", WithParent(a), WithStartState(rootB), WithMachineLogger(NoopLogger{}))
	var bSeen []EventID
	b.Add(rootB, evB1, rootB, Internal(), WithAction(func(e Event) { bSeen = append(bSeen, e.ID) }))

	orth := NewOrthogonalHSM("AB", a, b)
	outer1 := NewState("outer1")
	outer := NewStateMachine("outer", WithStartState(outer1), WithMachineLogger(NoopLogger{}), WithEventQueue(a.Queue()))
	outer.Add(outer1, 1000, orth)

	require.NoError(t, outer.Start())
	outer.SendEvent(WithID(1000, nil))
	_, err := outer.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, "Running", a.Lifecycle())
	assert.Equal(t, "Running", b.Lifecycle())

	for _, ev := range []EventID{evA1, evB1, evA1, evB1} {
		handled, err := orth.dispatch(WithID(ev, nil))
		require.NoError(t, err)
		assert.True(t, handled)
	}

	assert.Equal(t, []EventID{evA1, evA1}, aSeen)
	assert.Equal(t, []EventID{evB1, evB1}, bSeen)
}

func TestOrthogonalUnrecognizedEventPropagatesUp(t *testing.T) {
	outerStart := NewState("outerStart")
	outerTarget := NewState("outerTarget")
	outer := NewStateMachine("outer", WithStartState(outerStart), WithMachineLogger(NoopLogger{}))

	rootA := NewState("rootA")
	a := NewStateMachine("A", WithParent(outer), WithStartState(rootA), WithMachineLogger(NoopLogger{}))
	rootB := NewState("rootB")
	b := NewStateMachine("B", WithParent(outer), WithStartState(rootB), WithMachineLogger(NoopLogger{}))
	orth := NewOrthogonalHSM("AB", a, b)

	const evEnter EventID = 1
	const evUnknown EventID = 2
	outer.Add(outerStart, evEnter, orth)
	outer.Add(orth, evUnknown, outerTarget)

	require.NoError(t, outer.Start())
	outer.SendEvent(WithID(evEnter, nil))
	_, err := outer.RunOnce()
	require.NoError(t, err)
	assert.Same(t, node(orth), outer.CurrentState())

	outer.SendEvent(WithID(evUnknown, nil))
	_, err = outer.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, "outerTarget", outer.CurrentStateName())
}

func TestOrthogonalExitOrderStopsBothPeers(t *testing.T) {
	rootA := NewState("rootA")
	a := NewStateMachine("A", WithStartState(rootA), WithMachineLogger(NoopLogger{}))
	rootB := NewState("rootB")
	b := NewStateMachine("B", WithParent(a), WithStartState(rootB), WithMachineLogger(NoopLogger{}))
	orth := NewOrthogonalHSM("AB", a, b)

	outer1 := NewState("outer1")
	outer2 := NewState("outer2")
	outer := NewStateMachine("outer", WithStartState(outer1), WithMachineLogger(NoopLogger{}), WithEventQueue(a.Queue()))
	outer.Add(outer1, 1, orth)
	outer.Add(orth, 2, outer2)

	require.NoError(t, outer.Start())
	outer.SendEvent(WithID(1, nil))
	_, err := outer.RunOnce()
	require.NoError(t, err)
	require.Equal(t, "Running", a.Lifecycle())
	require.Equal(t, "Running", b.Lifecycle())

	outer.SendEvent(WithID(2, nil))
	_, err = outer.RunOnce()
	require.NoError(t, err)

	assert.Equal(t, "outer2", outer.CurrentStateName())
	assert.Equal(t, "Idle", a.Lifecycle())
	assert.Equal(t, "Idle", b.Lifecycle())
}
