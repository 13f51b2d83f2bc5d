package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fauxswitch/internal/action"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/logging"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/fauxswitch/internal/runner"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SwitchSource provides switch snapshots. Implemented by *runner.Runner.
type SwitchSource interface {
	Statuses() []runner.Status
	Status(name string) (runner.Status, bool)
	DiscoveryEnabled() bool
}

// EventSource provides recorded switch events. Implemented by
// *action.SQLiteEventStore.
type EventSource interface {
	Recent(ctx context.Context, name string, limit int) ([]action.Event, error)
}

// MQTTStatus reports broker connectivity and client counters.
// Implemented by *mqtt.Client.
type MQTTStatus interface {
	IsConnected() bool
	Stats() mqtt.Stats
}

// InfluxStatus reports InfluxDB connectivity and write counters.
// Implemented by *influxdb.Client.
type InfluxStatus interface {
	IsConnected() bool
	Stats() influxdb.Stats
}

// SchemaSource reports the applied migration version.
// Implemented by *database.DB.
type SchemaSource interface {
	SchemaVersion(ctx context.Context) (string, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Switches SwitchSource
	Events   EventSource       // Optional; events endpoint returns 503 without it
	MQTT     MQTTStatus        // Optional
	InfluxDB InfluxStatus      // Optional
	Database SchemaSource      // Optional
	Hub      *Hub              // Optional; enables /api/v1/ws
	Pending  func() int        // Optional; number of pending auto-off tasks
	Version  string
}

// Server is the HTTP status API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	switches  SwitchSource
	events    EventSource
	mqtt      MQTTStatus
	influx    InfluxStatus
	database  SchemaSource
	hub       *Hub
	pending   func() int
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, switches)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Switches == nil {
		return nil, fmt.Errorf("switch source is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		switches:  deps.Switches,
		events:    deps.Events,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		database:  deps.Database,
		hub:       deps.Hub,
		pending:   deps.Pending,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
// The server can be stopped with Close().
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
