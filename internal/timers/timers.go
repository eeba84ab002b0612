// Package timers provides a ticker-backed periodic event producer, adapted
// from this lineage's ChannelEventSource/TimerEventSource pair (formerly
// internal/extensibility) for the hsm package's Event/EventQueue types.
package timers

import (
	"time"

	"github.com/comalice/hsmrt"
)

// Ticker periodically pushes an event onto a queue using time.Ticker, for
// heartbeat- and timeout-driven transitions. It is a producer in the sense
// of §6 (concurrent producers): it only ever calls AddBack, same as any
// other external goroutine sending events into a running machine.
type Ticker struct {
	queue *hsm.EventQueue
	event hsm.Event
	t     *time.Ticker
	stop  chan struct{}
	done  chan struct{}
}

// NewTicker starts emitting event onto queue every d until Stop is called.
func NewTicker(queue *hsm.EventQueue, event hsm.Event, d time.Duration) *Ticker {
	tk := &Ticker{
		queue: queue,
		event: event,
		t:     time.NewTicker(d),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go tk.run()
	return tk
}

func (tk *Ticker) run() {
	defer close(tk.done)
	for {
		select {
		case <-tk.t.C:
			tk.queue.AddBack(tk.event)
		case <-tk.stop:
			tk.t.Stop()
			return
		}
	}
}

// Stop halts the ticker and waits for its goroutine to exit. Safe to call
// once; a second call panics, because it closes the already-closed stop
// channel.
func (tk *Ticker) Stop() {
	close(tk.stop)
	<-tk.done
}
