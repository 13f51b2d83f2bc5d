package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
)

// PointWriter is the subset of the InfluxDB client used by InfluxSink.
type PointWriter interface {
	WriteSwitchEvent(name, action, source string, success, on bool, timestamp time.Time)
}

// InfluxSink writes events as time-series points. Writes are batched by the
// client, so RecordEvent never fails.
type InfluxSink struct {
	Writer PointWriter
}

// RecordEvent implements EventSink.
func (s *InfluxSink) RecordEvent(_ context.Context, ev Event) error {
	s.Writer.WriteSwitchEvent(ev.Switch, ev.Action, ev.Source, ev.Success, ev.On, ev.OccurredAt)
	return nil
}

// MQTTStateSink publishes each switch's state as a retained message on
// fauxswitch/switch/{slug}/state.
type MQTTStateSink struct {
	Client Publisher
	QoS    byte
}

// statePayload is the retained state message.
type statePayload struct {
	Name    string    `json:"name"`
	On      bool      `json:"on"`
	Action  string    `json:"action"`
	Success bool      `json:"success"`
	Source  string    `json:"source"`
	Time    time.Time `json:"time"`
}

// RecordEvent implements EventSink.
func (s *MQTTStateSink) RecordEvent(_ context.Context, ev Event) error {
	payload, err := json.Marshal(statePayload{
		Name:    ev.Switch,
		On:      ev.On,
		Action:  ev.Action,
		Success: ev.Success,
		Source:  ev.Source,
		Time:    ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	topic := mqtt.Topics{}.SwitchState(mqtt.Slug(ev.Switch))
	if err := s.Client.Publish(topic, payload, s.QoS, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}
