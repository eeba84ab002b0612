package hsm

import "sync"

// SyncPolicy drives a root StateMachine from the caller's own goroutine:
// every Step call performs at most one dispatch iteration and never blocks
// (§4.6). There is no worker thread; SendEvent and Step may both be called
// from the same goroutine without risk of deadlock, which is the point of
// this policy over AsyncPolicy for embedders driving the machine from their
// own event loop (a UI tick, a test, a single-threaded simulation).
type SyncPolicy struct {
	Machine *StateMachine
}

// NewSyncPolicy wraps m for synchronous, caller-driven dispatch.
func NewSyncPolicy(m *StateMachine) *SyncPolicy {
	return &SyncPolicy{Machine: m}
}

// Start starts the underlying machine.
func (p *SyncPolicy) Start() error { return p.Machine.Start() }

// Stop stops the underlying machine.
func (p *SyncPolicy) Stop() error { return p.Machine.Stop() }

// SendEvent enqueues e; it takes effect on the next Step.
func (p *SyncPolicy) SendEvent(e Event) { p.Machine.SendEvent(e) }

// Step performs exactly one dispatcher iteration if an event is already
// queued, or returns immediately with done=false if the queue is empty.
// done is true once the machine has reached stopState (and moved to Idle) or
// moved to Terminated (ActionFault). An explicit Stop does not by itself make
// Step report done.
func (p *SyncPolicy) Step() (done bool, err error) {
	return p.Machine.Step()
}

// Drain calls Step repeatedly until the queue is empty or the machine
// stops, whichever comes first. It never blocks.
func (p *SyncPolicy) Drain() error {
	for {
		done, err := p.Machine.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if p.Machine.queue.Len() == 0 {
			return nil
		}
	}
}

// AsyncPolicy drives a root StateMachine from a dedicated worker goroutine
// blocked on EventQueue.Next (§4.6). This is the "optional worker-thread
// handle" attribute of the data model (§3), realized at this layer rather
// than inside StateMachine itself so the dispatcher stays policy-agnostic.
type AsyncPolicy struct {
	Machine *StateMachine

	// Notify, if set, is called with the best-effort observation that the
	// worker is about to block on the next event. It exists for the
	// Observer-flavored asynchronous policy the design notes mention (§8):
	// a monitor wanting to know "the machine is idle, waiting" without
	// altering dispatch itself. Notify must not block and must not call
	// back into the machine it was given.
	Notify func()

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewAsyncPolicy wraps m for worker-driven dispatch.
func NewAsyncPolicy(m *StateMachine) *AsyncPolicy {
	return &AsyncPolicy{Machine: m}
}

// Start starts the underlying machine and spawns its worker goroutine. It
// is an error to call Start twice without an intervening Stop; Wait alone
// does not allow a second Start.
func (p *AsyncPolicy) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrInvalidLifecycle
	}
	if err := p.Machine.Start(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *AsyncPolicy) run() {
	defer p.wg.Done()
	for {
		p.notify()
		done, _ := p.Machine.RunOnce()
		if done {
			return
		}
	}
}

// notify calls Notify, if set, recovering and logging any panic rather than
// letting it escape the worker goroutine: notification is best-effort and
// must never be fatal (§4.6 Observer variant).
func (p *AsyncPolicy) notify() {
	if p.Notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.Machine.logger.Error("async policy notify panicked", "machine", p.Machine.Name, "panic", r)
		}
	}()
	p.Notify()
}

// SendEvent enqueues e for the worker to pick up.
func (p *AsyncPolicy) SendEvent(e Event) { p.Machine.SendEvent(e) }

// Stop signals the underlying machine to stop and blocks until the worker
// goroutine has observed the interruption and exited (§4.6, clean shutdown
// under concurrent producers).
func (p *AsyncPolicy) Stop() error {
	err := p.Machine.Stop()
	p.wg.Wait()
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
	return err
}

// Wait blocks until the worker goroutine exits, however it got there
// (graceful Stop, reached stopState, or ActionFault). Useful when something
// other than the caller itself triggers the stop.
func (p *AsyncPolicy) Wait() {
	p.wg.Wait()
}
