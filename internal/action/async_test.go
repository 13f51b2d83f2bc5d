package action

import (
	"context"
	"errors"
	"testing"
	"time"
)

// gatedSink blocks every delivery until release is closed.
type gatedSink struct {
	memorySink
	started chan struct{}
	release chan struct{}
}

func (s *gatedSink) RecordEvent(ctx context.Context, ev Event) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	return s.memorySink.RecordEvent(ctx, ev)
}

func TestAsyncSink_DeliversInOrder(t *testing.T) {
	first, second := &memorySink{}, &memorySink{}
	a := NewAsyncSink(8, nil, first, nil, second)

	for _, name := range []string{"porch", "garage", "office"} {
		if err := a.RecordEvent(context.Background(), Event{Switch: name}); err != nil {
			t.Fatalf("RecordEvent(%s) error = %v", name, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for i, sink := range []*memorySink{first, second} {
		got := sink.all()
		if len(got) != 3 || got[0].Switch != "porch" || got[2].Switch != "office" {
			t.Errorf("sink %d got %+v, want porch, garage, office", i, got)
		}
	}
}

func TestAsyncSink_SlowSinkDoesNotBlock(t *testing.T) {
	slow := &gatedSink{started: make(chan struct{}, 1), release: make(chan struct{})}
	a := NewAsyncSink(1, nil, slow)
	ctx := context.Background()

	if err := a.RecordEvent(ctx, Event{Switch: "one"}); err != nil {
		t.Fatalf("RecordEvent(one) error = %v", err)
	}
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatal("sink never received the first event")
	}

	start := time.Now()
	if err := a.RecordEvent(ctx, Event{Switch: "two"}); err != nil {
		t.Fatalf("RecordEvent(two) error = %v", err)
	}
	if err := a.RecordEvent(ctx, Event{Switch: "three"}); !errors.Is(err, ErrSinkFull) {
		t.Errorf("RecordEvent(three) error = %v, want ErrSinkFull", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("RecordEvent blocked for %v behind a stalled sink", elapsed)
	}
	if a.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", a.Dropped())
	}

	close(slow.release)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := slow.all(); len(got) != 2 || got[1].Switch != "two" {
		t.Errorf("delivered %+v, want one and two", got)
	}
}

func TestAsyncSink_Close(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	a := NewAsyncSink(0, nil, failing)

	if err := a.RecordEvent(context.Background(), Event{Switch: "garage"}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(failing.all()) != 1 {
		t.Errorf("failing sink saw %d events, want 1", len(failing.all()))
	}
	if err := a.RecordEvent(context.Background(), Event{Switch: "garage"}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("RecordEvent() after Close error = %v, want ErrSinkClosed", err)
	}
}

func TestRecorder_WithAsyncSink(t *testing.T) {
	slow := &gatedSink{started: make(chan struct{}, 1), release: make(chan struct{})}
	a := NewAsyncSink(DefaultEventBuffer, nil, slow)
	r := NewRecorder("office", Static{On: true, Off: true}, a)

	done := make(chan bool, 1)
	go func() { done <- r.TurnOn() }()

	select {
	case ok := <-done:
		if !ok {
			t.Error("TurnOn() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("TurnOn() waited on a stalled sink")
	}

	close(slow.release)
	a.Close() //nolint:errcheck // Always nil
	if got := slow.all(); len(got) != 1 || !got[0].On {
		t.Errorf("delivered %+v, want one on event", got)
	}
}
