package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/fauxswitch/internal/action"
	"github.com/nerrad567/fauxswitch/internal/deferred"
	"github.com/nerrad567/fauxswitch/internal/discovery"
	"github.com/nerrad567/fauxswitch/internal/fauxmo"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/fauxswitch/internal/netaddr"
	"github.com/nerrad567/fauxswitch/internal/poller"
)

// Logger is the logging interface used by Runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber is the subset of the MQTT client used for set commands.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Deps are the optional collaborators of a Runner.
type Deps struct {
	// Publisher drives mqtt action handlers.
	Publisher action.Publisher

	// Subscriber receives fauxswitch/switch/{slug}/set commands.
	Subscriber Subscriber

	// Sinks receive every switch event.
	Sinks []action.EventSink

	Logger Logger
}

// Status is a snapshot of one switch for the status API.
type Status struct {
	fauxmo.Info
	State action.State `json:"state"`
}

type entry struct {
	sw  *fauxmo.Switch
	rec *action.Recorder
}

// Runner owns the poller, the discovery responder and all switches.
//
// Lifecycle: New → Run (blocks until ctx is done) → Close.
// Statuses, Status and HandleSetCommand are safe for concurrent use with Run.
type Runner struct {
	cfg        *config.Config
	poller     poller.Poller
	responder  *discovery.Responder
	discovery  bool
	queue      *deferred.Queue
	switches   []entry
	bySlug     map[string]entry
	subscriber Subscriber
	subscribed bool
	logger     Logger
}

// New builds every switch from cfg and registers it with a fresh poller.
//
// A switch whose control port cannot be bound is logged and left out; New
// fails only if none can be started. Discovery is enabled only if its socket
// could be set up.
//
// Parameters:
//   - cfg: Validated configuration
//   - deps: Optional MQTT client and event sinks
//
// Returns:
//   - *Runner: Ready to Run
//   - error: If the poller or action handlers cannot be created, or ErrNoSwitches
func New(cfg *config.Config, deps Deps) (*Runner, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	if err := checkIdentities(cfg); err != nil {
		return nil, err
	}

	p, err := poller.New()
	if err != nil {
		return nil, fmt.Errorf("creating poller: %w", err)
	}

	r := &Runner{
		cfg:        cfg,
		poller:     p,
		queue:      deferred.New(),
		bySlug:     make(map[string]entry, len(cfg.Switches)),
		subscriber: deps.Subscriber,
		logger:     logger,
	}
	r.queue.SetLogger(logger)

	recorders, err := action.Build(cfg.Switches, action.Deps{
		Publisher: deps.Publisher,
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0-2
		Queue:     r.queue,
		Sinks:     deps.Sinks,
		Logger:    logger,
	})
	if err != nil {
		r.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("building action handlers: %w", err)
	}

	ip := cfg.Network.BindAddress
	if ip == "" {
		resolver := netaddr.NewResolver(cfg.Network.ProbeAddress)
		resolver.SetLogger(logger)
		ip = resolver.IP()
	}

	r.responder = discovery.New(discovery.Config{
		Group:        cfg.Discovery.MulticastAddress,
		Port:         cfg.Discovery.Port,
		Interface:    cfg.Network.BindAddress,
		SearchTarget: cfg.Discovery.SearchTarget,
		Delay:        cfg.Discovery.ResponseDelay,
	})
	r.responder.SetLogger(logger)

	for i, sc := range cfg.Switches {
		sw, err := fauxmo.New(fauxmo.Options{
			Name:    sc.Name,
			IP:      ip,
			Port:    sc.Port,
			Handler: recorders[i],
			Logger:  logger,
		}, p)
		if err != nil {
			logger.Error("switch unavailable", "switch", sc.Name, "port", sc.Port, "error", err)
			continue
		}
		e := entry{sw: sw, rec: recorders[i]}
		r.switches = append(r.switches, e)
		r.bySlug[mqtt.Slug(sc.Name)] = e
		r.responder.AddDevice(sw)
	}
	if len(r.switches) == 0 {
		r.Close() //nolint:errcheck // Already failing
		return nil, ErrNoSwitches
	}

	if cfg.Discovery.Enabled {
		r.enableDiscovery()
	}

	if r.subscriber != nil {
		qos := byte(cfg.MQTT.QoS) //nolint:gosec // Validated to 0-2
		if err := r.subscriber.Subscribe(mqtt.Topics{}.AllSwitchSets(), qos, r.HandleSetCommand); err != nil {
			logger.Warn("mqtt set commands unavailable", "error", err)
		} else {
			r.subscribed = true
		}
	}

	return r, nil
}

func (r *Runner) enableDiscovery() {
	if !r.responder.InitSocket() {
		return
	}
	if err := r.poller.Register(r.responder.Fd(), r.responder); err != nil {
		r.logger.Warn("discovery unavailable", "error", err)
		r.responder.Close() //nolint:errcheck // Best effort cleanup
		return
	}
	r.discovery = true
}

// Run drives the event loop until ctx is done. A poller failure is fatal.
func (r *Runner) Run(ctx context.Context) error {
	timeout := r.cfg.Loop.PollTimeout
	idle := r.cfg.Loop.IdleSleep

	r.logger.Info("event loop started",
		"backend", r.poller.Backend(),
		"switches", len(r.switches),
		"discovery", r.discovery,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event loop stopped")
			return nil
		default:
		}

		if err := r.poller.RunOnce(timeout); err != nil {
			return fmt.Errorf("%w: %w", ErrLoop, err)
		}

		if idle > 0 {
			select {
			case <-ctx.Done():
				r.logger.Info("event loop stopped")
				return nil
			case <-time.After(idle):
			}
		}
	}
}

// DiscoveryEnabled reports whether search requests are being answered.
func (r *Runner) DiscoveryEnabled() bool {
	return r.discovery
}

// DiscoveryPort returns the bound SSDP port, or 0 when discovery is off.
func (r *Runner) DiscoveryPort() int {
	if !r.discovery {
		return 0
	}
	return r.responder.LocalPort()
}

// PendingAutoOff returns the number of scheduled auto-off follow-ups.
func (r *Runner) PendingAutoOff() int {
	return len(r.queue.Pending())
}

// Statuses returns a snapshot of every running switch in configuration order.
func (r *Runner) Statuses() []Status {
	out := make([]Status, 0, len(r.switches))
	for _, e := range r.switches {
		out = append(out, Status{Info: e.sw.Info(), State: e.rec.State()})
	}
	return out
}

// Status returns the snapshot of the named switch.
func (r *Runner) Status(name string) (Status, bool) {
	for _, e := range r.switches {
		if e.sw.Name() == name {
			return Status{Info: e.sw.Info(), State: e.rec.State()}, true
		}
	}
	return Status{}, false
}

// Close stops deferred tasks and releases every socket. Call it after Run
// has returned.
func (r *Runner) Close() error {
	if r.subscribed {
		if err := r.subscriber.Unsubscribe(mqtt.Topics{}.AllSwitchSets()); err != nil {
			r.logger.Warn("unsubscribing set commands failed", "error", err)
		}
		r.subscribed = false
	}

	r.queue.Close()

	for _, e := range r.switches {
		if err := e.sw.Close(); err != nil {
			r.logger.Warn("closing switch failed", "switch", e.sw.Name(), "error", err)
		}
	}
	r.switches = nil

	if r.discovery {
		r.poller.Unregister(r.responder.Fd()) //nolint:errcheck // Closing anyway
		if err := r.responder.Close(); err != nil {
			r.logger.Warn("closing discovery socket failed", "error", err)
		}
		r.discovery = false
	}

	return r.poller.Close()
}
