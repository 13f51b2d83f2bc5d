//go:build unix

package poller

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Poll is a Poller backed by poll(2). It is available on every Unix
// platform and is the fallback when epoll is not.
type Poll struct {
	targets targets
	fds     []unix.PollFd
	closed  bool
}

var _ Poller = (*Poll)(nil)

// NewPoll creates a poll(2) based Poller.
func NewPoll() *Poll {
	return &Poll{targets: make(targets)}
}

// Register implements Poller.
func (p *Poll) Register(fd int, l Listener) error {
	if p.closed {
		return ErrClosed
	}
	if fd < 0 {
		return fmt.Errorf("registering fd %d: %w", fd, unix.EBADF)
	}
	p.targets[fd] = l
	return nil
}

// Unregister implements Poller.
func (p *Poll) Unregister(fd int) error {
	delete(p.targets, fd)
	return nil
}

// RunOnce implements Poller.
func (p *Poll) RunOnce(timeout time.Duration) error {
	if p.closed {
		return ErrClosed
	}
	if len(p.targets) == 0 {
		return nil
	}

	p.fds = p.fds[:0]
	for fd := range p.targets {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}) //nolint:gosec // fds fit in int32
	}

	n, err := unix.Poll(p.fds, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil
	}

	var ready []int
	for _, pfd := range p.fds {
		fd := int(pfd.Fd)
		switch {
		case pfd.Revents&unix.POLLNVAL != 0:
			// Closed behind our back; drop it quietly.
			delete(p.targets, fd)
		case pfd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0:
			ready = append(ready, fd)
		}
	}
	for _, fd := range ready {
		p.targets.dispatch(fd)
	}
	return nil
}

// Len implements Poller.
func (p *Poll) Len() int {
	return len(p.targets)
}

// Backend implements Poller.
func (p *Poll) Backend() string {
	return BackendPoll
}

// Close implements Poller.
func (p *Poll) Close() error {
	p.closed = true
	return nil
}
