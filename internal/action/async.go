package action

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultEventBuffer is the AsyncSink buffer used by the daemon.
const DefaultEventBuffer = 256

// AsyncSink queues events and delivers them to its sinks on one background
// goroutine, in order. RecordEvent never blocks: when the buffer is full the
// event is dropped and counted.
//
// Each delivery is bounded by sinkTimeout for sinks that honour their
// context.
type AsyncSink struct {
	sinks  []EventSink
	events chan Event
	logger Logger
	done   chan struct{}

	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts the delivery goroutine. Close must be called to stop it.
//
// Parameters:
//   - buffer: Events held while sinks are busy; values below 1 mean 1
//   - logger: Receives sink failures; may be nil
//   - sinks: Destinations; nil entries are skipped
func NewAsyncSink(buffer int, logger Logger, sinks ...EventSink) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	kept := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}

	a := &AsyncSink{
		sinks:  kept,
		events: make(chan Event, buffer),
		logger: orNoop(logger),
		done:   make(chan struct{}),
	}
	go a.deliver()
	return a
}

// RecordEvent implements EventSink by queueing ev.
func (a *AsyncSink) RecordEvent(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSinkClosed
	}

	select {
	case a.events <- ev:
		return nil
	default:
		a.dropped.Add(1)
		return ErrSinkFull
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (a *AsyncSink) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are
// delivered. Safe to call more than once.
func (a *AsyncSink) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	<-a.done
	return nil
}

func (a *AsyncSink) deliver() {
	defer close(a.done)
	for ev := range a.events {
		for _, sink := range a.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := sink.RecordEvent(ctx, ev); err != nil {
				a.logger.Warn("delivering switch event failed", "switch", ev.Switch, "error", err)
			}
			cancel()
		}
	}
}
