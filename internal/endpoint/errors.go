package endpoint

import "errors"

// Domain errors for the endpoint package.
var (
	// ErrInvalidAddress is returned when the bind address is not IPv4.
	ErrInvalidAddress = errors.New("endpoint: invalid IPv4 address")

	// ErrBind is returned when the listening socket cannot be created,
	// bound, or put into listening state.
	ErrBind = errors.New("endpoint: bind failed")

	// ErrRegister is returned when the poller rejects the listening socket.
	ErrRegister = errors.New("endpoint: poller registration failed")

	// ErrConnClosed is returned when writing to a closed connection.
	ErrConnClosed = errors.New("endpoint: connection closed")
)
