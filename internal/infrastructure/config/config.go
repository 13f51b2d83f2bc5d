package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxSwitches is the number of switches the controlling hub will accept
// from a single emulator. Entries beyond it are rejected by Validate.
const MaxSwitches = 16

// Supported action handler types.
const (
	ActionStatic  = "static"
	ActionHTTP    = "http"
	ActionCommand = "command"
	ActionMQTT    = "mqtt"
)

// Config is the root configuration structure for fauxswitch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Loop      LoopConfig      `yaml:"loop"`
	Switches  []SwitchConfig  `yaml:"switches"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NetworkConfig controls which address the emulated switches bind to.
type NetworkConfig struct {
	// BindAddress is the IPv4 address all switch endpoints listen on.
	// If empty, the outbound-routable address is detected at startup.
	BindAddress string `yaml:"bind_address"`

	// ProbeAddress is the external UDP address used to discover the
	// outbound route. No packets are sent to it.
	ProbeAddress string `yaml:"probe_address"`
}

// DiscoveryConfig contains the multicast discovery responder settings.
type DiscoveryConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MulticastAddress string        `yaml:"multicast_address"`
	Port             int           `yaml:"port"`
	SearchTarget     string        `yaml:"search_target"`
	ResponseDelay    time.Duration `yaml:"response_delay"`
}

// LoopConfig tunes the readiness loop.
type LoopConfig struct {
	// PollTimeout is the longest a single poll call blocks.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// IdleSleep is slept between poll calls.
	IdleSleep time.Duration `yaml:"idle_sleep"`
}

// SwitchConfig describes one emulated switch.
type SwitchConfig struct {
	Name string `yaml:"name"`

	// Port is the control port. 0 lets the OS pick one.
	Port int `yaml:"port"`

	Action  ActionConfig  `yaml:"action"`
	AutoOff AutoOffConfig `yaml:"auto_off"`
}

// ActionConfig selects and parameterises the action handler of a switch.
type ActionConfig struct {
	// Type is one of: static, http, command, mqtt.
	Type string `yaml:"type"`

	// static
	OnResult  *bool `yaml:"on_result,omitempty"`
	OffResult *bool `yaml:"off_result,omitempty"`

	// http
	Method string `yaml:"method,omitempty"`
	OnURL  string `yaml:"on_url,omitempty"`
	OffURL string `yaml:"off_url,omitempty"`

	// command
	OnCommand  []string `yaml:"on_command,omitempty"`
	OffCommand []string `yaml:"off_command,omitempty"`

	// mqtt
	Topic      string `yaml:"topic,omitempty"`
	OnPayload  string `yaml:"on_payload,omitempty"`
	OffPayload string `yaml:"off_payload,omitempty"`

	// Timeout bounds http and command actions.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AutoOffConfig schedules a delayed turn-off after a successful turn-on.
type AutoOffConfig struct {
	// After is the delay. Zero disables the follow-up.
	After time.Duration `yaml:"after"`

	// Target names the switch to turn off. Defaults to the switch itself.
	Target string `yaml:"target,omitempty"`

	// Windows restricts the follow-up to these weekly time windows.
	// Empty means always.
	Windows []WindowConfig `yaml:"windows,omitempty"`
}

// WindowConfig is a weekly clock window, e.g. Mon-Fri 05:40-06:50.
type WindowConfig struct {
	Days  []string `yaml:"days"`
	Start string   `yaml:"start"`
	End   string   `yaml:"end"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention is how long switch events are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FAUXSWITCH_SECTION_KEY
// For example: FAUXSWITCH_BIND_ADDRESS, FAUXSWITCH_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			ProbeAddress: "8.8.8.8:53",
		},
		Discovery: DiscoveryConfig{
			Enabled:          true,
			MulticastAddress: "239.255.255.250",
			Port:             1900,
			SearchTarget:     "urn:Belkin:device:**",
			ResponseDelay:    100 * time.Millisecond,
		},
		Loop: LoopConfig{
			PollTimeout: 100 * time.Millisecond,
			IdleSleep:   100 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/fauxswitch.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fauxswitch",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FAUXSWITCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FAUXSWITCH_BIND_ADDRESS"); v != "" {
		cfg.Network.BindAddress = v
	}

	if v := os.Getenv("FAUXSWITCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("FAUXSWITCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FAUXSWITCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FAUXSWITCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FAUXSWITCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("FAUXSWITCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Network.BindAddress != "" {
		if ip := net.ParseIP(c.Network.BindAddress); ip == nil || ip.To4() == nil {
			errs = append(errs, "network.bind_address must be an IPv4 address")
		}
	}

	if c.Discovery.Enabled {
		if ip := net.ParseIP(c.Discovery.MulticastAddress); ip == nil || !ip.IsMulticast() || ip.To4() == nil {
			errs = append(errs, "discovery.multicast_address must be an IPv4 multicast address")
		}
		if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
			errs = append(errs, "discovery.port must be between 1 and 65535")
		}
		if c.Discovery.SearchTarget == "" {
			errs = append(errs, "discovery.search_target is required")
		}
		if c.Discovery.ResponseDelay < 0 {
			errs = append(errs, "discovery.response_delay must not be negative")
		}
	}

	if c.Loop.PollTimeout <= 0 {
		errs = append(errs, "loop.poll_timeout must be positive")
	}

	errs = append(errs, c.validateSwitches()...)

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "database.retention must not be negative")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateSwitches() []string {
	var errs []string

	if len(c.Switches) == 0 {
		errs = append(errs, "at least one switch is required")
	}
	if len(c.Switches) > MaxSwitches {
		errs = append(errs, fmt.Sprintf("at most %d switches are supported", MaxSwitches))
	}

	seen := make(map[string]bool, len(c.Switches))
	for i, sw := range c.Switches {
		prefix := fmt.Sprintf("switches[%d]", i)
		if sw.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else if seen[sw.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, sw.Name))
		}
		seen[sw.Name] = true

		if sw.Port < 0 || sw.Port > 65535 {
			errs = append(errs, prefix+".port must be between 0 and 65535")
		}

		switch sw.Action.Type {
		case ActionStatic, "":
		case ActionHTTP:
			if sw.Action.OnURL == "" || sw.Action.OffURL == "" {
				errs = append(errs, prefix+".action requires on_url and off_url")
			}
		case ActionCommand:
			if len(sw.Action.OnCommand) == 0 || len(sw.Action.OffCommand) == 0 {
				errs = append(errs, prefix+".action requires on_command and off_command")
			}
		case ActionMQTT:
			if sw.Action.Topic == "" {
				errs = append(errs, prefix+".action requires topic")
			}
			if !c.MQTT.Enabled {
				errs = append(errs, prefix+".action type mqtt requires mqtt.enabled")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.action.type %q is not supported", prefix, sw.Action.Type))
		}

		if sw.AutoOff.After < 0 {
			errs = append(errs, prefix+".auto_off.after must not be negative")
		}
	}

	for i, sw := range c.Switches {
		if t := sw.AutoOff.Target; t != "" && !seen[t] {
			errs = append(errs, fmt.Sprintf("switches[%d].auto_off.target %q is not a configured switch", i, t))
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
