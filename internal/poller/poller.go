package poller

import (
	"errors"
	"time"
)

// Backend names reported by Poller.Backend.
const (
	BackendEpoll = "epoll"
	BackendPoll  = "poll"
)

// ErrClosed is returned when a Poller is used after Close.
var ErrClosed = errors.New("poller: closed")

// Listener receives readiness notifications for the descriptors it registered.
//
// OnReadable runs on the goroutine that called RunOnce. It must not block on
// I/O: the descriptor is readable (or, for a listening socket, acceptable)
// when it is invoked.
type Listener interface {
	OnReadable(fd int)
}

// Poller multiplexes readiness notifications for a set of descriptors.
//
// A Poller is not safe for concurrent use. It is meant to be driven from a
// single goroutine, and Register/Unregister may be called from inside a
// Listener callback during RunOnce.
type Poller interface {
	// Register adds fd with its owning listener. Registering an fd that is
	// already present replaces its listener.
	Register(fd int, l Listener) error

	// Unregister removes fd. Removing an unknown or already closed fd is
	// not an error.
	Unregister(fd int) error

	// RunOnce waits up to timeout for registered descriptors to become
	// readable and invokes each ready listener once. With nothing
	// registered it returns immediately. A negative timeout blocks until
	// at least one descriptor is ready.
	RunOnce(timeout time.Duration) error

	// Len reports the number of registered descriptors.
	Len() int

	// Backend names the readiness primitive in use.
	Backend() string

	// Close releases the backend. Registered descriptors are not closed.
	Close() error
}

// New returns the most scalable Poller available on this platform,
// falling back to poll(2) when the preferred primitive cannot be created.
func New() (Poller, error) {
	if p, err := newPreferred(); err == nil {
		return p, nil
	}
	return NewPoll(), nil
}

// targets is the descriptor table shared by both backends.
type targets map[int]Listener

// dispatch invokes the listener for fd if it is still registered. Looking the
// listener up at dispatch time keeps removals made by earlier callbacks in the
// same cycle effective.
func (t targets) dispatch(fd int) {
	if l, ok := t[fd]; ok {
		l.OnReadable(fd)
	}
}

// timeoutMillis converts a timeout to the millisecond form used by
// epoll_wait(2) and poll(2).
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := timeout.Milliseconds()
	if ms == 0 && timeout > 0 {
		ms = 1
	}
	return int(ms)
}
