//go:build integration

package mqtt

import (
	"errors"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SwitchSetRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "fauxswitch-int-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	type msg struct {
		slug    string
		payload string
	}
	received := make(chan msg, 1)

	err = client.Subscribe(Topics{}.AllSwitchSets(), 1, func(topic string, payload []byte) error {
		slug, _ := SwitchSlug(topic)
		received <- msg{slug, string(payload)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := client.Stats().Subscriptions; got != 1 {
		t.Errorf("Stats().Subscriptions = %d after Subscribe, want 1", got)
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(Topics{}.SwitchSet("porch-light"), []byte("on"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-received:
		if m.slug != "porch-light" || m.payload != "on" {
			t.Errorf("received %+v, want porch-light/on", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	if err := client.Unsubscribe(Topics{}.AllSwitchSets()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if stats := client.Stats(); stats.Subscriptions != 0 || stats.Published != 1 || stats.Received != 1 {
		t.Errorf("Stats() = %+v, want 0 subscriptions, 1 published, 1 received", stats)
	}
}

func TestIntegration_PublishRetained(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.Publish(Topics{}.SwitchState("integration"), []byte(`{"on":false}`), 1, true); err != nil {
		t.Errorf("Publish(retained) error = %v", err)
	}
}
