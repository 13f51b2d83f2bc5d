package action

import (
	"time"
)

// Scheduler is the subset of deferred.Queue used by FollowUp.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func()) error
	Cancel(key string) bool
}

// FollowUp wraps a handler and, after a successful turn-on inside one of its
// windows, schedules a turn-off of a target switch. A turn-off through this
// handler cancels the pending follow-up.
//
// The typical use is a garage door relay whose light should go off again a
// little after the door was triggered in the early morning.
type FollowUp struct {
	next    Handler
	queue   Scheduler
	key     string
	after   time.Duration
	windows []Window
	target  Setter
	logger  Logger
	now     func() time.Time
}

// NewFollowUp creates a FollowUp keyed by the wrapping switch's name.
// The target must be set with SetTarget before the first call.
func NewFollowUp(name string, next Handler, queue Scheduler, after time.Duration, windows []Window) *FollowUp {
	return &FollowUp{
		next:    next,
		queue:   queue,
		key:     "auto_off:" + name,
		after:   after,
		windows: windows,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetTarget sets the switch turned off by the follow-up.
func (f *FollowUp) SetTarget(target Setter) {
	f.target = target
}

// SetLogger sets the logger.
func (f *FollowUp) SetLogger(logger Logger) {
	f.logger = orNoop(logger)
}

// TurnOn calls the wrapped handler and schedules the follow-up on success.
func (f *FollowUp) TurnOn() bool {
	ok := f.next.TurnOn()
	if !ok || f.target == nil {
		return ok
	}

	if !anyContains(f.windows, f.now()) {
		f.logger.Debug("auto-off skipped outside windows", "key", f.key)
		return ok
	}

	target := f.target
	if err := f.queue.Schedule(f.key, f.after, func() {
		target.Set(false, SourceAutoOff)
	}); err != nil {
		f.logger.Warn("scheduling auto-off failed", "key", f.key, "error", err)
		return ok
	}
	f.logger.Info("auto-off scheduled", "key", f.key, "after", f.after)
	return ok
}

// TurnOff calls the wrapped handler and drops any pending follow-up.
func (f *FollowUp) TurnOff() bool {
	if f.queue.Cancel(f.key) {
		f.logger.Debug("auto-off cancelled", "key", f.key)
	}
	return f.next.TurnOff()
}
