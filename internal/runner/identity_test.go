package runner

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/fauxswitch/internal/fauxmo"
)

func TestCheckIdentities(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		mqtt    bool
		wantErr string
	}{
		{name: "distinct", names: []string{"office", "Porch Light"}, mqtt: true},
		{name: "serial clash from reordered digits", names: []string{"lamp 12", "lamp 21"}, wantErr: "share serial"},
		{name: "serial clash from anagram suffix", names: []string{"living room lamp", "living room palm"}, wantErr: "share serial"},
		{name: "slug clash", names: []string{"Office Lights", "office-lights"}, mqtt: true, wantErr: "share MQTT topic segment"},
		{name: "slug clash ignored without mqtt", names: []string{"Office Lights", "office-lights"}},
		{name: "empty slug", names: []string{"日本"}, mqtt: true, wantErr: "no letters or digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.names...)
			cfg.MQTT.Enabled = tt.mqtt

			err := checkIdentities(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("checkIdentities() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrIdentityClash) {
				t.Fatalf("checkIdentities() error = %v, want ErrIdentityClash", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("checkIdentities() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RejectsClashingSerials(t *testing.T) {
	if got, other := fauxmo.MakeSerial("lamp 12"), fauxmo.MakeSerial("lamp 21"); got != other {
		t.Fatalf("MakeSerial() = %q and %q, want a shared serial for this case", got, other)
	}
	r, err := New(testConfig("lamp 12", "lamp 21"), Deps{})
	if !errors.Is(err, ErrIdentityClash) {
		if r != nil {
			r.Close() //nolint:errcheck // Test cleanup
		}
		t.Fatalf("New() error = %v, want ErrIdentityClash", err)
	}
}
