// Package endpoint implements the TCP surface of one emulated device.
//
// An Endpoint owns a listening socket and every connection accepted on it.
// It registers all of those descriptors with a single poller and tells them
// apart in OnReadable: the listening descriptor means "accept", any other
// means "read up to 4096 bytes and pass them to the Handler". A zero-length
// read means the peer closed; the connection is unregistered and discarded.
//
// Sockets are raw descriptors (golang.org/x/sys/unix) rather than net.Conn so
// that readiness is observed by our poller instead of the Go runtime's.
package endpoint
