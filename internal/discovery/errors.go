package discovery

import "errors"

// Domain errors for the discovery package.
var (
	// ErrSocket is returned when the UDP socket cannot be created or configured.
	ErrSocket = errors.New("discovery: socket setup failed")

	// ErrBind is returned when the SSDP port cannot be bound.
	ErrBind = errors.New("discovery: bind failed")

	// ErrJoinGroup is returned when the multicast group cannot be joined.
	ErrJoinGroup = errors.New("discovery: joining multicast group failed")
)
