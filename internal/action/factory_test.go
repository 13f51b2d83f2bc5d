package action

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
)

func boolPtr(b bool) *bool { return &b }

func TestNewHandler(t *testing.T) {
	pub := &fakePublisher{}

	tests := []struct {
		name    string
		cfg     config.ActionConfig
		deps    Deps
		wantErr error
		check   func(t *testing.T, h Handler)
	}{
		{
			name: "default static",
			cfg:  config.ActionConfig{},
			check: func(t *testing.T, h Handler) {
				if !h.TurnOn() || !h.TurnOff() {
					t.Error("default static handler should succeed")
				}
			},
		},
		{
			name: "static with results",
			cfg:  config.ActionConfig{Type: config.ActionStatic, OnResult: boolPtr(false)},
			check: func(t *testing.T, h Handler) {
				if h.TurnOn() {
					t.Error("TurnOn() = true, want configured false")
				}
			},
		},
		{
			name:    "http missing url",
			cfg:     config.ActionConfig{Type: config.ActionHTTP, OnURL: "http://relay/on"},
			wantErr: ErrMissingField,
		},
		{
			name: "http",
			cfg:  config.ActionConfig{Type: config.ActionHTTP, OnURL: "http://relay/on", OffURL: "http://relay/off", Timeout: time.Second},
			check: func(t *testing.T, h Handler) {
				hh, ok := h.(*HTTP)
				if !ok || hh.Timeout != time.Second {
					t.Errorf("handler = %#v, want *HTTP with timeout", h)
				}
			},
		},
		{
			name:    "command missing off",
			cfg:     config.ActionConfig{Type: config.ActionCommand, OnCommand: []string{"relay", "on"}},
			wantErr: ErrMissingField,
		},
		{
			name: "command",
			cfg:  config.ActionConfig{Type: config.ActionCommand, OnCommand: []string{"relay", "on"}, OffCommand: []string{"relay", "off"}},
			check: func(t *testing.T, h Handler) {
				if _, ok := h.(*Command); !ok {
					t.Errorf("handler = %T, want *Command", h)
				}
			},
		},
		{
			name:    "mqtt without publisher",
			cfg:     config.ActionConfig{Type: config.ActionMQTT, Topic: "lights/porch"},
			wantErr: ErrNoPublisher,
		},
		{
			name: "mqtt default payloads",
			cfg:  config.ActionConfig{Type: config.ActionMQTT, Topic: "lights/porch"},
			deps: Deps{Publisher: pub},
			check: func(t *testing.T, h Handler) {
				m := h.(*MQTT)
				if m.OnPayload != "on" || m.OffPayload != "off" {
					t.Errorf("payloads = %q/%q, want on/off", m.OnPayload, m.OffPayload)
				}
			},
		},
		{
			name:    "unknown",
			cfg:     config.ActionConfig{Type: "zigbee"},
			wantErr: ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.cfg, tt.deps)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewHandler() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHandler() error = %v", err)
			}
			tt.check(t, h)
		})
	}
}

func TestBuild(t *testing.T) {
	sink := &memorySink{}
	q := newFakeScheduler()
	switches := []config.SwitchConfig{
		{Name: "garage", AutoOff: config.AutoOffConfig{After: 20 * time.Second, Target: "torch"}},
		{Name: "torch"},
		{Name: "office"},
	}

	recs, err := Build(switches, Deps{Queue: q, Sinks: []EventSink{sink}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Build() returned %d recorders, want 3", len(recs))
	}
	for i, name := range []string{"garage", "torch", "office"} {
		if recs[i].Name() != name {
			t.Errorf("recorder %d = %q, want %q", i, recs[i].Name(), name)
		}
	}

	recs[0].TurnOn()
	fn, ok := q.tasks["auto_off:garage"]
	if !ok {
		t.Fatal("garage follow-up not scheduled")
	}
	fn()

	torch := recs[1].State()
	if !torch.Known || torch.On || torch.Source != SourceAutoOff {
		t.Errorf("torch state = %+v, want off from auto_off", torch)
	}
	if n := len(sink.all()); n != 2 {
		t.Errorf("recorded %d events, want 2", n)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name     string
		switches []config.SwitchConfig
		deps     Deps
		wantErr  error
	}{
		{
			name:     "bad handler",
			switches: []config.SwitchConfig{{Name: "a", Action: config.ActionConfig{Type: "x10"}}},
			wantErr:  ErrUnknownType,
		},
		{
			name:     "auto off without queue",
			switches: []config.SwitchConfig{{Name: "a", AutoOff: config.AutoOffConfig{After: time.Second}}},
			wantErr:  ErrMissingField,
		},
		{
			name: "bad window",
			switches: []config.SwitchConfig{{Name: "a", AutoOff: config.AutoOffConfig{
				After:   time.Second,
				Windows: []config.WindowConfig{{Start: "late", End: "later"}},
			}}},
			deps:    Deps{Queue: newFakeScheduler()},
			wantErr: ErrInvalidWindow,
		},
		{
			name:     "unknown target",
			switches: []config.SwitchConfig{{Name: "a", AutoOff: config.AutoOffConfig{After: time.Second, Target: "b"}}},
			deps:     Deps{Queue: newFakeScheduler()},
			wantErr:  ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.switches, tt.deps); !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
