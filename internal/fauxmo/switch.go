package fauxmo

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fauxswitch/internal/endpoint"
)

// ActionHandler performs the real-world effect of a switch. Each method
// reports whether the effect succeeded. Calls happen on the event loop
// goroutine and block it until they return.
type ActionHandler interface {
	TurnOn() bool
	TurnOff() bool
}

// Logger is the logging interface used by Switch.
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

// Options configures a Switch.
type Options struct {
	// Name is the friendly name the hub shows and matches voice commands to.
	Name string

	// IP is the IPv4 address to listen on and advertise.
	IP string

	// Port is the control port. 0 lets the OS pick one.
	Port int

	// Handler performs on/off.
	Handler ActionHandler

	// ExtraHeaders are appended to every reply. Nil means
	// []string{UserAgentHeader}; an empty non-nil slice sends none.
	ExtraHeaders []string

	// Logger is optional.
	Logger Logger
}

// Info is an immutable description of a switch.
type Info struct {
	Name         string `json:"name"`
	Serial       string `json:"serial"`
	PersistentID string `json:"persistent_id"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Location     string `json:"location"`
}

// Switch is one emulated WeMo socket.
//
// Identity fields are fixed at construction and safe to read from any
// goroutine. Request handling runs on the event loop goroutine only.
type Switch struct {
	name         string
	serial       string
	persistentID string
	sessionID    string
	extra        []string

	handler ActionHandler
	logger  Logger
	ep      *endpoint.Endpoint

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a switch and starts listening for control connections.
//
// Parameters:
//   - opts: Switch identity, binding and action handler
//   - reg: Poller the control socket is registered with
//
// Returns:
//   - *Switch: Listening switch; Port reports the bound port
//   - error: ErrInvalidName, ErrNoHandler, or an endpoint error
func New(opts Options, reg endpoint.Registrar) (*Switch, error) {
	if opts.Name == "" {
		return nil, ErrInvalidName
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, opts.Name)
	}

	extra := opts.ExtraHeaders
	if extra == nil {
		extra = []string{UserAgentHeader}
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	serial := MakeSerial(opts.Name)
	s := &Switch{
		name:         opts.Name,
		serial:       serial,
		persistentID: persistentPrefix + serial,
		sessionID:    uuid.NewString(),
		extra:        append([]string(nil), extra...),
		handler:      opts.Handler,
		logger:       logger,
		now:          time.Now,
	}

	ep, err := endpoint.Listen(opts.IP, opts.Port, reg, s)
	if err != nil {
		return nil, fmt.Errorf("switch %q: %w", opts.Name, err)
	}
	ep.SetLogger(logger)
	s.ep = ep

	logger.Info("switch listening", "switch", s.name, "location", s.Location(), "serial", s.serial)
	return s, nil
}

// Name returns the friendly name.
func (s *Switch) Name() string { return s.name }

// Serial returns the serial derived from the name.
func (s *Switch) Serial() string { return s.serial }

// PersistentID returns the USN root, stable across restarts.
func (s *Switch) PersistentID() string { return s.persistentID }

// SessionID returns the per-process identifier sent as 01-NLS.
func (s *Switch) SessionID() string { return s.sessionID }

// IP returns the address the switch listens on.
func (s *Switch) IP() string { return s.ep.IP() }

// Port returns the bound control port.
func (s *Switch) Port() int { return s.ep.Port() }

// Location returns the setup.xml URL advertised to hubs.
func (s *Switch) Location() string {
	return "http://" + net.JoinHostPort(s.IP(), strconv.Itoa(s.Port())) + "/setup.xml"
}

// ConnCount returns the number of open control connections.
func (s *Switch) ConnCount() int { return s.ep.ConnCount() }

// Info returns a snapshot of the switch identity.
func (s *Switch) Info() Info {
	return Info{
		Name:         s.name,
		Serial:       s.serial,
		PersistentID: s.persistentID,
		IP:           s.IP(),
		Port:         s.Port(),
		Location:     s.Location(),
	}
}

// HandleRequest implements endpoint.Handler.
func (s *Switch) HandleRequest(data []byte, peer *net.TCPAddr, conn *endpoint.Conn) {
	kind := classify(data)
	switch kind {
	case requestSetup:
		s.logger.Debug("serving setup.xml", "switch", s.name, "peer", peer)
		s.reply(conn, setupResponse(s.name, s.serial, s.extra, s.now()))

	case requestSetOn, requestSetOff:
		s.setBinaryState(kind == requestSetOn, peer, conn)

	case requestSetNoState:
		s.logger.Info("binary state request without a state", "switch", s.name, "peer", peer)

	default:
		s.logger.Debug("ignoring request", "switch", s.name, "peer", peer, "bytes", len(data))
	}
}

// setBinaryState runs the handler. Success is answered with 200 OK; failure
// gets no reply at all.
func (s *Switch) setBinaryState(on bool, peer *net.TCPAddr, conn *endpoint.Conn) {
	action := "off"
	var ok bool
	if on {
		action = "on"
		ok = s.handler.TurnOn()
	} else {
		ok = s.handler.TurnOff()
	}

	if !ok {
		s.logger.Warn("action failed, not answering", "switch", s.name, "action", action, "peer", peer)
		conn.Close() //nolint:errcheck // Close of an endpoint connection never fails
		return
	}

	s.logger.Info("switch set", "switch", s.name, "action", action, "peer", peer)
	s.reply(conn, binaryStateResponse(s.extra, s.now()))
}

// reply writes a complete response and closes the connection.
func (s *Switch) reply(conn *endpoint.Conn, msg []byte) {
	if _, err := conn.Write(msg); err != nil {
		s.logger.Warn("writing reply failed", "switch", s.name, "peer", conn.Peer(), "error", err)
	}
	conn.Close() //nolint:errcheck // Close of an endpoint connection never fails
}

// RespondToSearch sends one SSDP search reply to dest from a temporary socket.
//
// Parameters:
//   - dest: Address the M-SEARCH came from
//   - st: Search target echoed back in ST and USN
//
// Returns:
//   - error: ErrSearchReply wrapping the socket error
func (s *Switch) RespondToSearch(dest *net.UDPAddr, st string) error {
	msg := searchResponse(s.Location(), s.sessionID, s.persistentID, st, s.extra, s.now())

	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSearchReply, dest, err)
	}
	defer conn.Close() //nolint:errcheck // UDP close

	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSearchReply, dest, err)
	}

	s.logger.Debug("answered search", "switch", s.name, "dest", dest)
	return nil
}

// Close stops listening and drops every control connection.
func (s *Switch) Close() error {
	return s.ep.Close()
}
