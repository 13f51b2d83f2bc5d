package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
network:
  bind_address: "192.168.1.20"
discovery:
  response_delay: 50ms
database:
  retention: 168h
switches:
  - name: "office lights"
    action:
      type: http
      on_url: "http://192.168.1.109/ha-api?cmd=on&a=office"
      off_url: "http://192.168.1.109/ha-api?cmd=off&a=office"
  - name: "garage door"
    port: 52001
    action:
      type: command
      on_command: ["gpio-pulse", "17"]
      off_command: ["gpio-pulse", "17"]
    auto_off:
      after: 20s
      target: "office lights"
      windows:
        - days: [mon, tue, wed, thu, fri]
          start: "05:40"
          end: "06:50"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.BindAddress != "192.168.1.20" {
		t.Errorf("Network.BindAddress = %q, want %q", cfg.Network.BindAddress, "192.168.1.20")
	}
	if cfg.Discovery.ResponseDelay != 50*time.Millisecond {
		t.Errorf("Discovery.ResponseDelay = %v, want 50ms", cfg.Discovery.ResponseDelay)
	}
	if cfg.Database.Retention != 7*24*time.Hour {
		t.Errorf("Database.Retention = %v, want 168h", cfg.Database.Retention)
	}
	if cfg.Discovery.SearchTarget != "urn:Belkin:device:**" {
		t.Errorf("Discovery.SearchTarget = %q, want default", cfg.Discovery.SearchTarget)
	}
	if len(cfg.Switches) != 2 {
		t.Fatalf("len(Switches) = %d, want 2", len(cfg.Switches))
	}
	garage := cfg.Switches[1]
	if garage.Port != 52001 {
		t.Errorf("garage Port = %d, want 52001", garage.Port)
	}
	if garage.AutoOff.After != 20*time.Second {
		t.Errorf("garage AutoOff.After = %v, want 20s", garage.AutoOff.After)
	}
	if len(garage.AutoOff.Windows) != 1 || len(garage.AutoOff.Windows[0].Days) != 5 {
		t.Errorf("garage AutoOff.Windows = %+v, want one window with five days", garage.AutoOff.Windows)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FAUXSWITCH_BIND_ADDRESS", "10.0.0.5")
	t.Setenv("FAUXSWITCH_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, `
switches:
  - name: "kitchen lights"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.BindAddress != "10.0.0.5" {
		t.Errorf("Network.BindAddress = %q, want %q", cfg.Network.BindAddress, "10.0.0.5")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Switches = []SwitchConfig{{Name: "office lights"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "no switches",
			mutate:  func(c *Config) { c.Switches = nil },
			wantErr: "at least one switch",
		},
		{
			name: "too many switches",
			mutate: func(c *Config) {
				c.Switches = nil
				for i := 0; i <= MaxSwitches; i++ {
					c.Switches = append(c.Switches, SwitchConfig{Name: strings.Repeat("x", i+1)})
				}
			},
			wantErr: "at most 16",
		},
		{
			name: "duplicate names",
			mutate: func(c *Config) {
				c.Switches = append(c.Switches, SwitchConfig{Name: "office lights"})
			},
			wantErr: "duplicated",
		},
		{
			name:    "ipv6 bind address",
			mutate:  func(c *Config) { c.Network.BindAddress = "::1" },
			wantErr: "bind_address",
		},
		{
			name:    "unicast discovery group",
			mutate:  func(c *Config) { c.Discovery.MulticastAddress = "192.168.1.1" },
			wantErr: "multicast_address",
		},
		{
			name: "discovery disabled skips group check",
			mutate: func(c *Config) {
				c.Discovery.Enabled = false
				c.Discovery.MulticastAddress = ""
			},
		},
		{
			name:    "unknown action type",
			mutate:  func(c *Config) { c.Switches[0].Action.Type = "telnet" },
			wantErr: "not supported",
		},
		{
			name:    "http action without urls",
			mutate:  func(c *Config) { c.Switches[0].Action.Type = ActionHTTP },
			wantErr: "on_url",
		},
		{
			name: "mqtt action without mqtt",
			mutate: func(c *Config) {
				c.Switches[0].Action = ActionConfig{Type: ActionMQTT, Topic: "home/relay"}
			},
			wantErr: "mqtt.enabled",
		},
		{
			name:    "unknown auto off target",
			mutate:  func(c *Config) { c.Switches[0].AutoOff.Target = "torch" },
			wantErr: "not a configured switch",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Database.Retention = -time.Hour },
			wantErr: "database.retention",
		},
		{
			name:   "zero retention keeps events",
			mutate: func(c *Config) { c.Database.Retention = 0 },
		},
		{
			name:    "zero poll timeout",
			mutate:  func(c *Config) { c.Loop.PollTimeout = 0 },
			wantErr: "poll_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 5, Write: 10, Idle: 60},
		},
	}

	if got := cfg.GetReadTimeout(); got != 5*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 10*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
