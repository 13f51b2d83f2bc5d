package endpoint

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Conn is a client connection accepted by an Endpoint.
type Conn struct {
	fd     int
	peer   *net.TCPAddr
	owner  *Endpoint
	closed bool
}

// Peer returns the remote address.
func (c *Conn) Peer() *net.TCPAddr {
	return c.peer
}

// Write sends all of p.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrConnClosed
	}

	written := 0
	for written < len(p) {
		n, err := unix.Write(c.fd, p[written:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, fmt.Errorf("writing to %s: %w", c.peer, err)
		}
		written += n
	}
	return written, nil
}

// Close unregisters and closes the connection. It is safe to call from
// inside Handler.HandleRequest and more than once.
func (c *Conn) Close() error {
	c.owner.drop(c)
	return nil
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	return c.closed
}
