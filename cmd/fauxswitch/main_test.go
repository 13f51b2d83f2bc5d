package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_NoSwitches verifies validation errors stop startup.
func TestRun_NoSwitches(t *testing.T) {
	path := writeConfig(t, `
discovery:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err == nil {
		t.Fatal("run() should fail without switches")
	}
}

// TestRun_ServesUntilCancelled starts a static switch with event history and
// verifies run returns cleanly once the context ends.
func TestRun_ServesUntilCancelled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	path := writeConfig(t, `
network:
  bind_address: "127.0.0.1"
discovery:
  enabled: false
loop:
  poll_timeout: 10ms
  idle_sleep: 1ms
switches:
  - name: "Test Lamp"
    port: 0
    action:
      type: static
database:
  enabled: true
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, options{configPath: path, debug: true}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("FAUXSWITCH_CONFIG", "")
		if got := getConfigPath(""); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("FAUXSWITCH_CONFIG", "/etc/fauxswitch.yaml")
		if got := getConfigPath(""); got != "/etc/fauxswitch.yaml" {
			t.Errorf("getConfigPath() = %q, want %q", got, "/etc/fauxswitch.yaml")
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("FAUXSWITCH_CONFIG", "/etc/fauxswitch.yaml")
		if got := getConfigPath("./local.yaml"); got != "./local.yaml" {
			t.Errorf("getConfigPath() = %q, want %q", got, "./local.yaml")
		}
	})
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-d", "-config", "x.yaml"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if !opts.debug || opts.configPath != "x.yaml" {
		t.Errorf("parseFlags() = %+v, want debug and config x.yaml", opts)
	}

	if _, err := parseFlags([]string{"-bogus"}, io.Discard); err == nil {
		t.Error("parseFlags(-bogus) should fail")
	}
}
