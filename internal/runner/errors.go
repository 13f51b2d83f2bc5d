package runner

import "errors"

// Domain errors for the runner package.
var (
	// ErrNoSwitches is returned when no switch could be started.
	ErrNoSwitches = errors.New("runner: no switch could be started")

	// ErrLoop wraps a fatal poller error.
	ErrLoop = errors.New("runner: event loop failed")

	// ErrUnknownSwitch is returned for a set command naming no switch.
	ErrUnknownSwitch = errors.New("runner: unknown switch")

	// ErrInvalidCommand is returned for an unparseable set command.
	ErrInvalidCommand = errors.New("runner: invalid set command")
)

// ErrIdentityClash is returned when two switch names derive the same serial
// or MQTT topic segment.
var ErrIdentityClash = errors.New("runner: switch identities clash")
