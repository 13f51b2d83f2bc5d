package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/fauxswitch/internal/action"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
)

// HandleSetCommand applies a message received on
// fauxswitch/switch/{slug}/set. It runs on an MQTT client goroutine.
//
// Accepted payloads: on, off, 1, 0, true, false (any case), or JSON
// {"on": true}.
func (r *Runner) HandleSetCommand(topic string, payload []byte) error {
	slug, ok := mqtt.SwitchSlug(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	e, ok := r.bySlug[slug]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSwitch, slug)
	}

	on, err := parseSetPayload(payload)
	if err != nil {
		return err
	}

	if !e.rec.Set(on, action.SourceMQTT) {
		r.logger.Warn("mqtt set command failed", "switch", e.sw.Name(), "on", on)
	}
	return nil
}

func parseSetPayload(payload []byte) (bool, error) {
	text := strings.ToLower(strings.TrimSpace(string(payload)))
	switch text {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}

	if strings.HasPrefix(text, "{") {
		var msg struct {
			On *bool `json:"on"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		if msg.On == nil {
			return false, fmt.Errorf("%w: missing \"on\"", ErrInvalidCommand)
		}
		return *msg.On, nil
	}

	return false, fmt.Errorf("%w: payload %q", ErrInvalidCommand, text)
}
