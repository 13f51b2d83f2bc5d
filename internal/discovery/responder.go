package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Defaults for Config fields left empty.
const (
	DefaultGroup        = "239.255.255.250"
	DefaultPort         = 1900
	DefaultSearchTarget = "urn:Belkin:device:**"
	DefaultDelay        = 100 * time.Millisecond

	// searchMethod must start a datagram for it to be considered.
	searchMethod = "M-SEARCH"

	// maxDatagram is the most read per datagram.
	maxDatagram = 1024
)

// Device is a switch that can answer a search.
type Device interface {
	Name() string
	RespondToSearch(dest *net.UDPAddr, st string) error
}

// Logger is the logging interface used by Responder.
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

// Config configures a Responder.
type Config struct {
	// Group is the multicast group to join.
	Group string

	// Port is the UDP port to bind. Tests use 0 for an ephemeral port.
	Port int

	// Interface is the IPv4 address of the interface to join the group on.
	// Empty lets the kernel choose.
	Interface string

	// SearchTarget is the one ST substring that is answered.
	SearchTarget string

	// Delay is slept before each device's reply.
	Delay time.Duration
}

// withDefaults fills empty fields. Port 0 is kept.
func (c Config) withDefaults() Config {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.SearchTarget == "" {
		c.SearchTarget = DefaultSearchTarget
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	return c
}

// Responder listens for SSDP searches and fans them out to devices.
//
// Lifecycle: New → InitSocket → (register with a poller) → OnReadable ...
// A Responder whose InitSocket failed must not be registered; discovery is
// then simply unavailable. Apart from Close, all methods run on the event
// loop goroutine.
type Responder struct {
	cfg     Config
	fd      int
	port    int
	devices []Device
	buf     []byte
	logger  Logger

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// New creates an uninitialised responder.
func New(cfg Config) *Responder {
	return &Responder{
		cfg:    cfg.withDefaults(),
		fd:     -1,
		buf:    make([]byte, maxDatagram),
		logger: noopLogger{},
		sleep:  time.Sleep,
	}
}

// SetLogger sets the logger for the responder.
func (r *Responder) SetLogger(logger Logger) {
	r.logger = logger
}

// InitSocket creates the SSDP socket, binds the port and joins the group.
// On any failure it logs, releases the socket and returns false.
func (r *Responder) InitSocket() bool {
	if r.fd >= 0 {
		return true
	}
	if err := r.open(); err != nil {
		r.logger.Warn("discovery unavailable", "group", r.cfg.Group, "port", r.cfg.Port, "error", err)
		return false
	}
	r.logger.Info("listening for searches", "group", r.cfg.Group, "port", r.port, "search_target", r.cfg.SearchTarget)
	return true
}

func (r *Responder) open() error {
	group := net.ParseIP(r.cfg.Group).To4()
	if group == nil || !group.IsMulticast() {
		return fmt.Errorf("%w: %q is not an IPv4 multicast group", ErrJoinGroup, r.cfg.Group)
	}
	var iface [4]byte
	if r.cfg.Interface != "" {
		ip := net.ParseIP(r.cfg.Interface).To4()
		if ip == nil {
			return fmt.Errorf("%w: interface %q is not an IPv4 address", ErrJoinGroup, r.cfg.Interface)
		}
		copy(iface[:], ip)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSocket, err)
	}
	unix.CloseOnExec(fd)

	fail := func(err error) error {
		unix.Close(fd) //nolint:errcheck // Best effort cleanup on error path
		return err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(fmt.Errorf("%w: SO_REUSEADDR: %w", ErrSocket, err))
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail(fmt.Errorf("%w: nonblocking: %w", ErrSocket, err))
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: r.cfg.Port}); err != nil {
		return fail(fmt.Errorf("%w: port %d: %w", ErrBind, r.cfg.Port, err))
	}

	mreq := &unix.IPMreq{Interface: iface}
	copy(mreq.Multiaddr[:], group)
	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrJoinGroup, r.cfg.Group, err))
	}

	local, err := unix.Getsockname(fd)
	if err != nil {
		return fail(fmt.Errorf("%w: getsockname: %w", ErrSocket, err))
	}
	if in4, ok := local.(*unix.SockaddrInet4); ok {
		r.port = in4.Port
	}

	r.fd = fd
	return nil
}

// Fd returns the socket descriptor, or -1 before a successful InitSocket.
func (r *Responder) Fd() int {
	return r.fd
}

// LocalPort returns the bound UDP port, or 0 before a successful InitSocket.
func (r *Responder) LocalPort() int {
	return r.port
}

// SearchTarget returns the recognised search target.
func (r *Responder) SearchTarget() string {
	return r.cfg.SearchTarget
}

// AddDevice registers a device. Devices are never removed.
func (r *Responder) AddDevice(d Device) {
	r.devices = append(r.devices, d)
	r.logger.Debug("device registered for discovery", "device", d.Name(), "devices", len(r.devices))
}

// DeviceCount returns the number of registered devices.
func (r *Responder) DeviceCount() int {
	return len(r.devices)
}

// OnReadable implements poller.Listener. It receives one datagram.
func (r *Responder) OnReadable(fd int) {
	n, from, err := unix.Recvfrom(fd, r.buf, 0)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) {
			r.logger.Warn("receiving datagram failed", "error", err)
		}
		return
	}
	if n == 0 {
		return
	}

	sender, ok := from.(*unix.SockaddrInet4)
	if !ok {
		return
	}
	dest := &net.UDPAddr{
		IP:   net.IPv4(sender.Addr[0], sender.Addr[1], sender.Addr[2], sender.Addr[3]),
		Port: sender.Port,
	}
	r.HandleDatagram(r.buf[:n], dest)
}

// HandleDatagram answers data if it is a recognised search, one reply per
// device in registration order, sleeping Delay before each. It returns the
// number of replies sent.
func (r *Responder) HandleDatagram(data []byte, from *net.UDPAddr) int {
	if !r.isSearch(data) {
		return 0
	}

	r.logger.Debug("search received", "from", from, "devices", len(r.devices))
	sent := 0
	for _, d := range r.devices {
		r.sleep(r.cfg.Delay)
		if err := d.RespondToSearch(from, r.cfg.SearchTarget); err != nil {
			r.logger.Warn("search reply failed", "device", d.Name(), "to", from, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (r *Responder) isSearch(data []byte) bool {
	return bytes.HasPrefix(data, []byte(searchMethod)) &&
		bytes.Contains(data, []byte(r.cfg.SearchTarget))
}

// Close releases the socket. The caller unregisters it from the poller first.
func (r *Responder) Close() error {
	if r.fd < 0 {
		return nil
	}
	fd := r.fd
	r.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("closing discovery socket: %w", err)
	}
	return nil
}
