package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fauxswitch/internal/action"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/logging"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := testServer(t, Deps{Hub: hub})
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck // Upgrade response
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func newTestHub() *Hub {
	return NewHub(logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"))
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	hub := newTestHub()
	conn := dialHub(t, hub)

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{ChannelSwitchChanged}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe reply = %+v, want response id 1", resp)
	}

	ev := action.Event{Switch: "office", Action: action.ActionOn, Success: true, On: true, Source: action.SourceHub}
	if err := hub.RecordEvent(context.Background(), ev); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelSwitchChanged {
		t.Fatalf("event = %+v, want %s", msg, ChannelSwitchChanged)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["switch"] != "office" || payload["on"] != true {
		t.Errorf("payload = %v, want office on", msg.Payload)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	conn := dialHub(t, newTestHub())

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypePong || msg.ID != "p" {
		t.Errorf("ping reply = %+v, want pong", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("bogus reply = %+v, want error", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v, want error", msg)
	}
}

func TestHub_UnsubscribedClientGetsNothing(t *testing.T) {
	hub := newTestHub()
	conn := dialHub(t, hub)

	// A ping round trip guarantees the client is registered.
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readMessage(t, conn)

	hub.Broadcast(ChannelSwitchChanged, map[string]string{"switch": "office"})

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)) //nolint:errcheck // Test deadline
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("unsubscribed client received a broadcast")
	}
}

func TestHub_Close(t *testing.T) {
	hub := newTestHub()
	conn := dialHub(t, hub)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readMessage(t, conn)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Close()
	hub.Close()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close, want 0", hub.ClientCount())
	}
	if hub.Register(&WSClient{send: make(chan []byte, 1)}) {
		t.Error("Register() after Close = true, want false")
	}
}

func TestRouter_NoWebSocketWithoutHub(t *testing.T) {
	rec := get(t, testServer(t, Deps{}), "/api/v1/ws")
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
