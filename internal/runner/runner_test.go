package runner

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
)

func testConfig(names ...string) *config.Config {
	cfg := &config.Config{
		Network: config.NetworkConfig{BindAddress: "127.0.0.1"},
		Discovery: config.DiscoveryConfig{
			Enabled:          false,
			MulticastAddress: "239.255.255.250",
			SearchTarget:     "urn:Belkin:device:**",
		},
		Loop: config.LoopConfig{
			PollTimeout: 10 * time.Millisecond,
			IdleSleep:   time.Millisecond,
		},
	}
	for _, n := range names {
		cfg.Switches = append(cfg.Switches, config.SwitchConfig{Name: n})
	}
	return cfg
}

// startRunner runs r in the background until the test ends.
func startRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run() did not return after cancel")
		}
		r.Close() //nolint:errcheck // Test cleanup
	})
}

func roundTrip(t *testing.T, port int, request string) string {
	t.Helper()
	c, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte(request)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	c.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	got, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(got)
}

func TestNew_BuildsSwitches(t *testing.T) {
	r, err := New(testConfig("office", "Porch Light"), Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	statuses := r.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() returned %d, want 2", len(statuses))
	}
	for _, st := range statuses {
		if st.Port == 0 {
			t.Errorf("%s: Port = 0, want bound port", st.Name)
		}
		want := "http://127.0.0.1:" + strconv.Itoa(st.Port) + "/setup.xml"
		if st.Location != want {
			t.Errorf("%s: Location = %q, want %q", st.Name, st.Location, want)
		}
		if st.State.Known {
			t.Errorf("%s: state known before any action", st.Name)
		}
	}
	if statuses[0].Name != "office" || statuses[1].Name != "Porch Light" {
		t.Errorf("order = %q, %q, want configuration order", statuses[0].Name, statuses[1].Name)
	}

	if _, ok := r.Status("office"); !ok {
		t.Error("Status(office) not found")
	}
	if _, ok := r.Status("attic"); ok {
		t.Error("Status(attic) found, want missing")
	}
	if r.DiscoveryEnabled() || r.DiscoveryPort() != 0 {
		t.Error("discovery enabled while disabled in config")
	}
}

func TestNew_SkipsSwitchThatCannotBind(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer busy.Close()

	cfg := testConfig("office", "garage")
	cfg.Switches[1].Port = busy.Addr().(*net.TCPAddr).Port

	r, err := New(cfg, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	statuses := r.Statuses()
	if len(statuses) != 1 || statuses[0].Name != "office" {
		t.Errorf("Statuses() = %+v, want only office", statuses)
	}
}

func TestNew_NoSwitchCanStart(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer busy.Close()

	cfg := testConfig("garage")
	cfg.Switches[0].Port = busy.Addr().(*net.TCPAddr).Port

	if _, err := New(cfg, Deps{}); !errors.Is(err, ErrNoSwitches) {
		t.Errorf("New() error = %v, want ErrNoSwitches", err)
	}
}

func TestNew_BadAction(t *testing.T) {
	cfg := testConfig("garage")
	cfg.Switches[0].Action.Type = "x10"

	if _, err := New(cfg, Deps{}); err == nil {
		t.Error("New() error = nil, want action error")
	}
}

func TestRun_ServesSwitches(t *testing.T) {
	r, err := New(testConfig("office"), Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startRunner(t, r)

	st := r.Statuses()[0]
	setup := roundTrip(t, st.Port, "GET /setup.xml HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n")
	if !strings.HasPrefix(setup, "HTTP/1.1 200 OK") || !strings.Contains(setup, "<friendlyName>office</friendlyName>") {
		t.Errorf("setup response = %q", setup)
	}

	body := `<?xml version="1.0" encoding="utf-8"?><s:Envelope><s:Body>` +
		`<u:SetBinaryState xmlns:u="urn:Belkin:service:basicevent:1"><BinaryState>1</BinaryState></u:SetBinaryState>` +
		`</s:Body></s:Envelope>`
	soap := "POST /upnp/control/basicevent1 HTTP/1.1\r\n" +
		"SOAPACTION: \"urn:Belkin:service:basicevent:1#SetBinaryState\"\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	resp := roundTrip(t, st.Port, soap)
	if !strings.Contains(resp, "CONTENT-LENGTH: 0") {
		t.Errorf("set response = %q, want 200 with empty body", resp)
	}

	got, _ := r.Status("office")
	if !got.State.Known || !got.State.On || got.State.Source != "hub" {
		t.Errorf("state = %+v, want on from hub", got.State)
	}
}

func TestRun_DiscoveryAnswersSearch(t *testing.T) {
	cfg := testConfig("office")
	cfg.Network.BindAddress = ""
	cfg.Discovery.Enabled = true
	cfg.Discovery.Port = 0
	cfg.Switches[0].Port = 0

	r, err := New(cfg, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !r.DiscoveryEnabled() {
		r.Close() //nolint:errcheck // Test cleanup
		t.Skip("multicast membership unavailable in this environment")
	}
	startRunner(t, r)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	search := "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nST: urn:Belkin:device:**\r\n\r\n"
	dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: r.DiscoveryPort()}
	if _, err := client.WriteToUDP([]byte(search), dest); err != nil {
		t.Fatalf("WriteToUDP() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // Test deadline
	buf := make([]byte, 2048)
	n, _, err := client.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	reply := string(buf[:n])

	st := r.Statuses()[0]
	if !strings.Contains(reply, "LOCATION: "+st.Location) {
		t.Errorf("reply = %q, want LOCATION %s", reply, st.Location)
	}
	if !strings.Contains(reply, st.PersistentID) {
		t.Errorf("reply = %q, want USN with %s", reply, st.PersistentID)
	}
}

// fakeSubscriber records subscriptions.
type fakeSubscriber struct {
	mu       sync.Mutex
	err      error
	topics   []string
	handlers []mqtt.MessageHandler
	unsubbed []string
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	s.handlers = append(s.handlers, handler)
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubbed = append(s.unsubbed, topic)
	return nil
}

func TestSetCommands(t *testing.T) {
	sub := &fakeSubscriber{}
	r, err := New(testConfig("office", "Porch Light"), Deps{Subscriber: sub})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if len(sub.topics) != 1 || sub.topics[0] != "fauxswitch/switch/+/set" {
		t.Fatalf("subscribed to %v, want [fauxswitch/switch/+/set]", sub.topics)
	}

	handler := sub.handlers[0]
	if err := handler("fauxswitch/switch/porch-light/set", []byte("ON")); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	st, _ := r.Status("Porch Light")
	if !st.State.On || st.State.Source != "mqtt" {
		t.Errorf("state = %+v, want on from mqtt", st.State)
	}

	if err := handler("fauxswitch/switch/porch-light/set", []byte(`{"on": false}`)); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	st, _ = r.Status("Porch Light")
	if st.State.On {
		t.Error("state on after JSON off command")
	}

	if err := handler("fauxswitch/switch/attic/set", []byte("on")); !errors.Is(err, ErrUnknownSwitch) {
		t.Errorf("unknown switch error = %v, want ErrUnknownSwitch", err)
	}
	if err := handler("fauxswitch/switch/office/set", []byte("dim")); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("bad payload error = %v, want ErrInvalidCommand", err)
	}
	if err := handler("other/topic", []byte("on")); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("bad topic error = %v, want ErrInvalidCommand", err)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if len(sub.unsubbed) != 1 {
		t.Errorf("unsubscribed %d topics, want 1", len(sub.unsubbed))
	}
}

func TestSetCommands_SubscribeFailureIsNotFatal(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("not connected")}
	r, err := New(testConfig("office"), Deps{Subscriber: sub})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if len(sub.unsubbed) != 0 {
		t.Error("unsubscribed without a subscription")
	}
}

func TestParseSetPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{payload: "on", want: true},
		{payload: " TRUE\n", want: true},
		{payload: "1", want: true},
		{payload: "off", want: false},
		{payload: "0", want: false},
		{payload: `{"on":true}`, want: true},
		{payload: `{"on":false}`, want: false},
		{payload: `{"state":"on"}`, wantErr: true},
		{payload: `{broken`, wantErr: true},
		{payload: "toggle", wantErr: true},
		{payload: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := parseSetPayload([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSetPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSetPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, err := New(testConfig("office"), Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil on cancelled context", err)
	}
}
