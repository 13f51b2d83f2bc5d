// Package netaddr determines the host's outbound-routable IPv4 address.
package netaddr

import (
	"net"
	"net/netip"
	"sync"
)

// Loopback is returned when no outbound route can be found.
const Loopback = "127.0.0.1"

// DefaultProbe is the external address whose route is resolved. Nothing is
// sent to it: connecting a UDP socket only performs route selection.
const DefaultProbe = "8.8.8.8:53"

// Logger is the optional logging interface.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Resolver computes the local address once, on first use, and caches it.
//
// Thread Safety: IP is safe for concurrent use.
type Resolver struct {
	probe  string
	logger Logger

	once sync.Once
	ip   string
}

// NewResolver creates a Resolver that probes the route to probe, which must
// be a literal IPv4 host:port. An invalid probe makes IP return Loopback.
func NewResolver(probe string) *Resolver {
	if probe == "" {
		probe = DefaultProbe
	}
	return &Resolver{probe: probe}
}

// SetLogger sets the logger used when the address is first computed.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// IP returns the cached address, computing it on the first call.
func (r *Resolver) IP() string {
	r.once.Do(func() {
		r.ip = r.detect()
		if r.logger != nil {
			r.logger.Debug("local address resolved", "ip", r.ip, "probe", r.probe)
		}
	})
	return r.ip
}

func (r *Resolver) detect() string {
	// ParseAddrPort only accepts literals, so no DNS lookup can happen.
	ap, err := netip.ParseAddrPort(r.probe)
	if err != nil || !ap.Addr().Is4() {
		r.warn("invalid route probe address", err)
		return Loopback
	}

	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(ap))
	if err != nil {
		r.warn("no outbound route", err)
		return Loopback
	}
	defer conn.Close() //nolint:errcheck // Probe socket, nothing was sent

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.To4() == nil || local.IP.IsUnspecified() {
		return Loopback
	}
	return local.IP.To4().String()
}

func (r *Resolver) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, "probe", r.probe, "error", err, "fallback", Loopback)
	}
}
