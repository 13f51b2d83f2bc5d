package action

import "errors"

// Domain errors for the action package.
var (
	// ErrUnknownType is returned for an unsupported action type.
	ErrUnknownType = errors.New("action: unknown handler type")

	// ErrMissingField is returned when a handler lacks required settings.
	ErrMissingField = errors.New("action: missing required field")

	// ErrInvalidWindow is returned when a time window cannot be parsed.
	ErrInvalidWindow = errors.New("action: invalid time window")

	// ErrNoPublisher is returned when an mqtt handler has no client.
	ErrNoPublisher = errors.New("action: mqtt handler requires a publisher")

	// ErrSinkFull is returned when an AsyncSink buffer is full; the event
	// is dropped.
	ErrSinkFull = errors.New("action: event buffer full")

	// ErrSinkClosed is returned by an AsyncSink after Close.
	ErrSinkClosed = errors.New("action: event sink closed")
)
