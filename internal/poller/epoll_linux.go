//go:build linux

package poller

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// maxEvents bounds the number of events collected per epoll_wait call.
const maxEvents = 64

// Epoll is a Poller backed by epoll(7).
type Epoll struct {
	epfd    int
	targets targets
	events  []unix.EpollEvent
	closed  bool
}

var _ Poller = (*Epoll)(nil)

// NewEpoll creates an epoll instance.
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Epoll{
		epfd:    epfd,
		targets: make(targets),
		events:  make([]unix.EpollEvent, maxEvents),
	}, nil
}

func newPreferred() (Poller, error) {
	return NewEpoll()
}

// Register implements Poller.
func (p *Epoll) Register(fd int, l Listener) error {
	if p.closed {
		return ErrClosed
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)} //nolint:gosec // fds fit in int32
	op := unix.EPOLL_CTL_ADD
	if _, ok := p.targets[fd]; ok {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(p.epfd, op, fd, &ev)
	if op == unix.EPOLL_CTL_MOD && errors.Is(err, unix.ENOENT) {
		// The previous owner of this fd number was closed without
		// unregistering; the kernel already forgot it.
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	if err != nil {
		return fmt.Errorf("registering fd %d: %w", fd, err)
	}

	p.targets[fd] = l
	return nil
}

// Unregister implements Poller.
func (p *Epoll) Unregister(fd int) error {
	if _, ok := p.targets[fd]; !ok {
		return nil
	}
	delete(p.targets, fd)

	if p.closed {
		return nil
	}

	// A closed fd has already left the interest list.
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unregistering fd %d: %w", fd, err)
	}
	return nil
}

// RunOnce implements Poller.
func (p *Epoll) RunOnce(timeout time.Duration) error {
	if p.closed {
		return ErrClosed
	}
	p.dropClosed()
	if len(p.targets) == 0 {
		return nil
	}

	n, err := unix.EpollWait(p.epfd, p.events, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("epoll_wait: %w", err)
	}

	ready := make([]int, n)
	for i := 0; i < n; i++ {
		ready[i] = int(p.events[i].Fd)
	}
	for _, fd := range ready {
		p.targets.dispatch(fd)
	}
	return nil
}

// dropClosed forgets descriptors that were closed without being
// unregistered. The kernel removes them from the interest list on close, so
// epoll_wait alone would never report them.
func (p *Epoll) dropClosed() {
	for fd := range p.targets {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); errors.Is(err, unix.EBADF) {
			delete(p.targets, fd)
		}
	}
}

// Len implements Poller.
func (p *Epoll) Len() int {
	return len(p.targets)
}

// Backend implements Poller.
func (p *Epoll) Backend() string {
	return BackendEpoll
}

// Close implements Poller.
func (p *Epoll) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("closing epoll fd: %w", err)
	}
	return nil
}
