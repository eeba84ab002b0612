// Package hsm is a hierarchical state machine runtime: a library for
// defining, composing, and executing finite state machines whose states may
// themselves be state machines, and whose events may be processed
// synchronously on the caller's goroutine or asynchronously on a dedicated
// worker goroutine.
//
// The runtime is a transition dispatcher (StateMachine), an interruptible
// blocking event queue (EventQueue), a pair of execution policies
// (SyncPolicy, AsyncPolicy) that drive the dispatcher, and an orthogonal
// composition (OrthogonalHSM) that routes one event stream to two peer state
// machines. It does not ship sample state machines, logging backends beyond
// a slog-based default, or a test harness — those are adapters embedders
// supply themselves.
package hsm
