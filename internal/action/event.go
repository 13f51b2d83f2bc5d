package action

import (
	"context"
	"time"
)

// Actions recorded in events.
const (
	ActionOn  = "on"
	ActionOff = "off"
)

// Trigger sources recorded in events.
const (
	SourceHub     = "hub"
	SourceMQTT    = "mqtt"
	SourceAutoOff = "auto_off"
)

// Event is the outcome of one handler call.
type Event struct {
	ID         int64     `json:"id,omitempty"`
	Switch     string    `json:"switch"`
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	On         bool      `json:"on"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink receives every recorded event.
type EventSink interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// State is the last known state of a switch.
type State struct {
	On        bool      `json:"on"`
	Known     bool      `json:"known"`
	Source    string    `json:"source,omitempty"`
	ChangedAt time.Time `json:"changed_at,omitzero"`
}

func actionName(on bool) string {
	if on {
		return ActionOn
	}
	return ActionOff
}
