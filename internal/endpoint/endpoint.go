package endpoint

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/fauxswitch/internal/poller"
)

const (
	// readChunkSize is the most read from a connection per readiness event.
	readChunkSize = 4096

	// listenBacklog is the accept queue length.
	listenBacklog = 5
)

// Registrar is the subset of poller.Poller an Endpoint needs.
type Registrar interface {
	Register(fd int, l poller.Listener) error
	Unregister(fd int) error
}

// Handler interprets the bytes received on a connection.
//
// HandleRequest runs on the event loop goroutine. data is owned by the
// handler. The handler may write to conn and may Close it; a connection that
// is left open stays registered until the peer closes it.
type Handler interface {
	HandleRequest(data []byte, peer *net.TCPAddr, conn *Conn)
}

// Logger is the logging interface used by Endpoint.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Endpoint owns one listening TCP socket and the connections accepted on it.
//
// It is driven entirely by poller callbacks and is not safe for concurrent
// use. Address accessors are immutable after Listen and may be read from any
// goroutine.
type Endpoint struct {
	reg     Registrar
	handler Handler
	logger  Logger

	fd   int
	ip   net.IP
	port int

	conns  map[int]*Conn
	buf    []byte
	closed bool
}

// Listen binds a TCP socket on ip:port, starts listening, and registers it
// with reg. Port 0 asks the OS for an ephemeral port; Port reports the port
// actually bound as soon as Listen returns.
//
// Parameters:
//   - ip: IPv4 address literal to bind
//   - port: TCP port, or 0 for an ephemeral port
//   - reg: Poller the listening socket and its connections are registered with
//   - handler: Receives every chunk read from accepted connections
//
// Returns:
//   - *Endpoint: Listening endpoint
//   - error: ErrInvalidAddress, ErrBind, or ErrRegister
func Listen(ip string, port int, reg Registrar, handler Handler) (*Endpoint, error) {
	addr := net.ParseIP(ip).To4()
	if addr == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %w", ErrBind, err)
	}
	unix.CloseOnExec(fd)

	bound, err := bindAndListen(fd, addr, port)
	if err != nil {
		unix.Close(fd) //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	e := &Endpoint{
		reg:     reg,
		handler: handler,
		logger:  noopLogger{},
		fd:      fd,
		ip:      addr,
		port:    bound,
		conns:   make(map[int]*Conn),
		buf:     make([]byte, readChunkSize),
	}

	if err := reg.Register(fd, e); err != nil {
		unix.Close(fd) //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrRegister, err)
	}

	return e, nil
}

func bindAndListen(fd int, addr net.IP, port int) (int, error) {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return 0, fmt.Errorf("%w: SO_REUSEADDR: %w", ErrBind, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, fmt.Errorf("%w: nonblocking: %w", ErrBind, err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], addr)
	if err := unix.Bind(fd, sa); err != nil {
		return 0, fmt.Errorf("%w: %s:%d: %w", ErrBind, addr, port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		return 0, fmt.Errorf("%w: listen: %w", ErrBind, err)
	}

	local, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("%w: getsockname: %w", ErrBind, err)
	}
	in4, ok := local.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected socket address %T", ErrBind, local)
	}
	return in4.Port, nil
}

// SetLogger sets the logger for the endpoint.
func (e *Endpoint) SetLogger(logger Logger) {
	e.logger = logger
}

// IP returns the bound address.
func (e *Endpoint) IP() string {
	return e.ip.String()
}

// Port returns the bound port.
func (e *Endpoint) Port() int {
	return e.port
}

// Fd returns the listening descriptor.
func (e *Endpoint) Fd() int {
	return e.fd
}

// ConnCount returns the number of open client connections.
func (e *Endpoint) ConnCount() int {
	return len(e.conns)
}

// OnReadable implements poller.Listener. Readiness on the listening socket
// accepts a peer; readiness on a connection reads one chunk and hands it to
// the Handler.
func (e *Endpoint) OnReadable(fd int) {
	if fd == e.fd {
		e.accept()
		return
	}

	conn, ok := e.conns[fd]
	if !ok {
		// Stale registration: never ours or already dropped.
		e.reg.Unregister(fd) //nolint:errcheck // Unregister of unknown fd is a no-op
		return
	}

	n, err := unix.Read(fd, e.buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return
		}
		e.logger.Debug("read failed, dropping connection", "peer", conn.peer, "error", err)
		e.drop(conn)
		return
	}
	if n == 0 {
		e.drop(conn)
		return
	}

	data := make([]byte, n)
	copy(data, e.buf[:n])
	e.handler.HandleRequest(data, conn.peer, conn)
}

func (e *Endpoint) accept() {
	nfd, sa, err := unix.Accept(e.fd)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.ECONNABORTED) && !errors.Is(err, unix.EINTR) {
			e.logger.Warn("accept failed", "port", e.port, "error", err)
		}
		return
	}
	unix.CloseOnExec(nfd)

	// BSDs inherit O_NONBLOCK from the listener; responses are written
	// with plain blocking writes.
	if err := unix.SetNonblock(nfd, false); err != nil {
		e.logger.Warn("configuring accepted socket failed", "error", err)
		unix.Close(nfd) //nolint:errcheck // Best effort cleanup on error path
		return
	}

	conn := &Conn{fd: nfd, peer: tcpAddr(sa), owner: e}
	if err := e.reg.Register(nfd, e); err != nil {
		e.logger.Warn("registering connection failed", "peer", conn.peer, "error", err)
		unix.Close(nfd) //nolint:errcheck // Best effort cleanup on error path
		return
	}
	e.conns[nfd] = conn
	e.logger.Debug("connection accepted", "peer", conn.peer, "port", e.port)
}

// drop unregisters and closes a connection.
func (e *Endpoint) drop(c *Conn) {
	if c.closed {
		return
	}
	c.closed = true
	delete(e.conns, c.fd)
	e.reg.Unregister(c.fd) //nolint:errcheck // Removal never fails for a known fd
	unix.Close(c.fd)       //nolint:errcheck // Peer may already be gone
}

// Close closes every connection and the listening socket.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	for _, c := range e.conns {
		e.drop(c)
	}
	e.reg.Unregister(e.fd) //nolint:errcheck // Removal never fails for a known fd
	if err := unix.Close(e.fd); err != nil {
		return fmt.Errorf("closing listener: %w", err)
	}
	return nil
}

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}
