package deferred

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when scheduling on a closed Queue.
var ErrClosed = errors.New("deferred: queue closed")

// Logger is the logging interface used by Queue.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

type task struct {
	id     uint64
	cancel context.CancelFunc
	due    time.Time
}

// Queue holds pending tasks by key.
//
// Thread Safety: all methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending map[string]task
	nextID  uint64
	closed  bool
	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	logger  Logger
}

// New creates an empty queue.
func New() *Queue {
	ctx, stop := context.WithCancel(context.Background())
	return &Queue{
		pending: make(map[string]task),
		ctx:     ctx,
		stop:    stop,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// Schedule runs fn after delay unless cancelled. A task already pending
// under key is cancelled and replaced.
//
// Parameters:
//   - key: Identifies the task for replacement and cancellation
//   - delay: Time to wait before running fn
//   - fn: The work; it runs on its own goroutine
//
// Returns:
//   - error: ErrClosed if the queue has been closed
func (q *Queue) Schedule(key string, delay time.Duration, fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if prev, ok := q.pending[key]; ok {
		prev.cancel()
		q.logger.Debug("deferred task replaced", "key", key)
	}

	q.nextID++
	id := q.nextID
	ctx, cancel := context.WithCancel(q.ctx)
	q.pending[key] = task{id: id, cancel: cancel, due: time.Now().Add(delay)}

	q.wg.Add(1)
	go q.run(ctx, key, id, delay, fn)
	return nil
}

func (q *Queue) run(ctx context.Context, key string, id uint64, delay time.Duration, fn func()) {
	defer q.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	// Claim the task; a concurrent Cancel or replacement wins if it got here first.
	q.mu.Lock()
	current, ok := q.pending[key]
	if !ok || current.id != id || ctx.Err() != nil {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.mu.Unlock()

	current.cancel()
	q.logger.Debug("deferred task running", "key", key)
	fn()
}

// Cancel drops the task pending under key. It reports whether one was pending.
func (q *Queue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.pending[key]
	if !ok {
		return false
	}
	t.cancel()
	delete(q.pending, key)
	q.logger.Debug("deferred task cancelled", "key", key)
	return true
}

// Pending returns the keys with a pending task and when each is due.
func (q *Queue) Pending() map[string]time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]time.Time, len(q.pending))
	for k, t := range q.pending {
		out[k] = t.due
	}
	return out
}

// Close cancels every pending task and waits for running ones to finish.
// It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.stop()
	q.pending = make(map[string]task)
	q.mu.Unlock()

	q.wg.Wait()
}
