package fauxmo

import "errors"

// Domain errors for the fauxmo package.
var (
	// ErrInvalidName is returned when a switch has an empty name.
	ErrInvalidName = errors.New("fauxmo: switch name is required")

	// ErrNoHandler is returned when a switch has no action handler.
	ErrNoHandler = errors.New("fauxmo: action handler is required")

	// ErrSearchReply is returned when the discovery reply cannot be sent.
	ErrSearchReply = errors.New("fauxmo: sending search reply failed")
)
