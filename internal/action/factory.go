package action

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
)

// Deps are the shared collaborators handlers may need.
type Deps struct {
	// Publisher is required by mqtt handlers.
	Publisher Publisher

	// QoS is used by mqtt handlers.
	QoS byte

	// Queue runs auto-off follow-ups. Required when any switch sets
	// auto_off.after.
	Queue Scheduler

	// Sinks receive every event of every switch.
	Sinks []EventSink

	// HTTPClient is used by http handlers. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger Logger
}

// NewHandler builds the base handler described by cfg.
func NewHandler(cfg config.ActionConfig, deps Deps) (Handler, error) {
	logger := orNoop(deps.Logger)

	switch cfg.Type {
	case config.ActionStatic, "":
		return Static{On: boolOr(cfg.OnResult, true), Off: boolOr(cfg.OffResult, true)}, nil

	case config.ActionHTTP:
		if cfg.OnURL == "" || cfg.OffURL == "" {
			return nil, fmt.Errorf("%w: http handler needs on_url and off_url", ErrMissingField)
		}
		return &HTTP{
			Method:  cfg.Method,
			OnURL:   cfg.OnURL,
			OffURL:  cfg.OffURL,
			Timeout: cfg.Timeout,
			Client:  deps.HTTPClient,
			Logger:  logger,
		}, nil

	case config.ActionCommand:
		if len(cfg.OnCommand) == 0 || len(cfg.OffCommand) == 0 {
			return nil, fmt.Errorf("%w: command handler needs on_command and off_command", ErrMissingField)
		}
		return &Command{
			On:      cfg.OnCommand,
			Off:     cfg.OffCommand,
			Timeout: cfg.Timeout,
			Logger:  logger,
		}, nil

	case config.ActionMQTT:
		if cfg.Topic == "" {
			return nil, fmt.Errorf("%w: mqtt handler needs topic", ErrMissingField)
		}
		if deps.Publisher == nil {
			return nil, ErrNoPublisher
		}
		on, off := cfg.OnPayload, cfg.OffPayload
		if on == "" {
			on = ActionOn
		}
		if off == "" {
			off = ActionOff
		}
		return &MQTT{
			Client:     deps.Publisher,
			Topic:      cfg.Topic,
			OnPayload:  on,
			OffPayload: off,
			QoS:        deps.QoS,
			Logger:     logger,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
}

// Build creates one Recorder per configured switch, in order, with
// follow-ups wired to their targets.
//
// Parameters:
//   - switches: Validated switch configuration
//   - deps: Shared collaborators
//
// Returns:
//   - []*Recorder: One per switch, same order as switches
//   - error: If any handler cannot be built
func Build(switches []config.SwitchConfig, deps Deps) ([]*Recorder, error) {
	logger := orNoop(deps.Logger)
	recorders := make([]*Recorder, 0, len(switches))
	byName := make(map[string]*Recorder, len(switches))
	type pending struct {
		followUp *FollowUp
		target   string
	}
	var followUps []pending

	for _, sw := range switches {
		base, err := NewHandler(sw.Action, deps)
		if err != nil {
			return nil, fmt.Errorf("switch %q: %w", sw.Name, err)
		}

		var h Handler = base
		if sw.AutoOff.After > 0 {
			if deps.Queue == nil {
				return nil, fmt.Errorf("switch %q: %w: auto_off needs a queue", sw.Name, ErrMissingField)
			}
			windows := make([]Window, 0, len(sw.AutoOff.Windows))
			for _, wc := range sw.AutoOff.Windows {
				w, err := ParseWindow(wc.Days, wc.Start, wc.End)
				if err != nil {
					return nil, fmt.Errorf("switch %q: %w", sw.Name, err)
				}
				windows = append(windows, w)
			}
			fu := NewFollowUp(sw.Name, base, deps.Queue, sw.AutoOff.After, windows)
			fu.SetLogger(logger)
			target := sw.AutoOff.Target
			if target == "" {
				target = sw.Name
			}
			followUps = append(followUps, pending{followUp: fu, target: target})
			h = fu
		}

		rec := NewRecorder(sw.Name, h, deps.Sinks...)
		rec.SetLogger(logger)
		recorders = append(recorders, rec)
		byName[sw.Name] = rec
	}

	for _, p := range followUps {
		target, ok := byName[p.target]
		if !ok {
			return nil, fmt.Errorf("%w: auto_off target %q is not a configured switch", ErrMissingField, p.target)
		}
		p.followUp.SetTarget(target)
	}

	return recorders, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
