// fauxswitch emulates WeMo smart sockets on the local network so a voice
// assistant hub can discover and switch them.
//
// Each configured switch gets its own control port and answers the hub's
// SSDP search; on/off requests are delegated to a configurable action
// (static result, HTTP call, local command or MQTT publish).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/fauxswitch/migrations"

	"github.com/nerrad567/fauxswitch/internal/action"
	"github.com/nerrad567/fauxswitch/internal/api"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/database"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/logging"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/fauxswitch/internal/runner"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// retentionInterval is how often old switch events are pruned.
const retentionInterval = time.Hour

// options are the command-line flags.
type options struct {
	configPath string
	debug      bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line.
func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("fauxswitch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to config file (default $FAUXSWITCH_CONFIG or "+defaultConfigPath+")")
	fs.BoolVar(&opts.debug, "d", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error { //nolint:gocognit,gocyclo // startup wiring: each optional service adds a branch
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting fauxswitch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"switches", len(cfg.Switches),
		"level", cfg.Logging.Level,
	)

	var (
		sinks      []action.EventSink
		events     api.EventSource
		publisher  action.Publisher
		subscriber runner.Subscriber
		mqttStatus api.MQTTStatus
		influxStat api.InfluxStatus
		schema     api.SchemaSource
		db         *database.DB
		mqttClient *mqtt.Client
		influx     *influxdb.Client
	)

	// Event history (optional)
	if cfg.Database.Enabled {
		db, err = database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		store := action.NewSQLiteEventStore(db.DB)
		sinks = append(sinks, store)
		events = store
		schema = db
		log.Info("event history enabled", "path", db.Path(), "retention", cfg.Database.Retention.String())

		if cfg.Database.Retention > 0 {
			retentionCtx, stopRetention := context.WithCancel(ctx)
			retentionDone := make(chan struct{})
			go func() {
				defer close(retentionDone)
				store.RunRetention(retentionCtx, cfg.Database.Retention, retentionInterval, log.With("component", "retention"))
			}()
			// Runs before the database is closed.
			defer func() {
				stopRetention()
				<-retentionDone
			}()
		}
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher = mqttClient
		subscriber = mqttClient
		mqttStatus = mqttClient
		sinks = append(sinks, &action.MQTTStateSink{Client: mqttClient, QoS: byte(cfg.MQTT.QoS)}) //nolint:gosec // Validated to 0-2
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, &action.InfluxSink{Writer: influx})
		influxStat = influx
	}

	// Live event stream for API clients
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log.With("component", "websocket"))
		sinks = append(sinks, hub)
	}

	// Sinks run off the event loop; a slow broker or disk only delays history.
	delivery := action.NewAsyncSink(action.DefaultEventBuffer, log.With("component", "events"), sinks...)
	defer func() {
		if closeErr := delivery.Close(); closeErr != nil {
			log.Error("error flushing switch events", "error", closeErr)
		}
		if dropped := delivery.Dropped(); dropped > 0 {
			log.Warn("switch events dropped", "count", dropped)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	r, err := runner.New(cfg, runner.Deps{
		Publisher:  publisher,
		Subscriber: subscriber,
		Sinks:      []action.EventSink{delivery},
		Logger:     log.With("component", "runner"),
	})
	if err != nil {
		return fmt.Errorf("starting switches: %w", err)
	}
	defer func() {
		log.Info("closing switches")
		if closeErr := r.Close(); closeErr != nil {
			log.Error("error closing switches", "error", closeErr)
		}
	}()

	// Status API (optional)
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.With("component", "api"),
			Switches: r,
			Events:   events,
			MQTT:     mqttStatus,
			InfluxDB: influxStat,
			Database: schema,
			Hub:      hub,
			Pending:  r.PendingAutoOff,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, serving switches")
	if err := r.Run(ctx); err != nil {
		return err
	}

	log.Info("fauxswitch stopped")
	return nil
}

// getConfigPath returns the configuration file path: the -config flag, then
// FAUXSWITCH_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("FAUXSWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every enabled infrastructure connection.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database (nil if disabled)
//   - mqttClient: MQTT client (nil if disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
