package action

import (
	"context"
	"sync"
	"time"
)

// sinkTimeout bounds each sink write. Sinks run on the caller's goroutine;
// put slow ones behind an AsyncSink.
const sinkTimeout = 2 * time.Second

// Recorder wraps a switch's handler, tracks its state and reports every
// call to the configured sinks.
//
// Thread Safety: all methods are safe for concurrent use. Calls into the
// wrapped handler are serialised.
type Recorder struct {
	name   string
	next   Handler
	sinks  []EventSink
	logger Logger
	now    func() time.Time

	callMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewRecorder creates a Recorder for the named switch.
//
// Parameters:
//   - name: Switch friendly name, used in events
//   - next: The handler doing the work
//   - sinks: Destinations for events; nil entries are skipped
func NewRecorder(name string, next Handler, sinks ...EventSink) *Recorder {
	kept := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Recorder{
		name:   name,
		next:   next,
		sinks:  kept,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = orNoop(logger)
}

// Name returns the switch name.
func (r *Recorder) Name() string { return r.name }

// TurnOn implements Handler for requests from the hub.
func (r *Recorder) TurnOn() bool { return r.Set(true, SourceHub) }

// TurnOff implements Handler for requests from the hub.
func (r *Recorder) TurnOff() bool { return r.Set(false, SourceHub) }

// Set calls the wrapped handler and records the outcome.
func (r *Recorder) Set(on bool, source string) bool {
	r.callMu.Lock()
	defer r.callMu.Unlock()

	var ok bool
	if on {
		ok = r.next.TurnOn()
	} else {
		ok = r.next.TurnOff()
	}
	now := r.now().UTC()

	r.mu.Lock()
	if ok {
		r.state = State{On: on, Known: true, Source: source, ChangedAt: now}
	}
	current := r.state.On
	r.mu.Unlock()

	ev := Event{
		Switch:     r.name,
		Action:     actionName(on),
		Success:    ok,
		On:         current,
		Source:     source,
		OccurredAt: now,
	}
	r.logger.Info("switch action",
		"switch", r.name,
		"action", ev.Action,
		"success", ok,
		"source", source,
	)
	r.record(ev)

	return ok
}

func (r *Recorder) record(ev Event) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := sink.RecordEvent(ctx, ev); err != nil {
			r.logger.Warn("recording switch event failed", "switch", r.name, "error", err)
		}
		cancel()
	}
}

// State returns the last known state.
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}
