package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
)

// Logger receives handler failures and reconnect notices.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler handles one received message. Handlers run on paho's
// goroutines; a returned error is logged and the message still counts as
// delivered.
type MessageHandler func(topic string, payload []byte) error

// Client is the broker connection shared by the mqtt action handler, the
// retained state sink and the set command subscription.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscriptions are re-issued after every reconnect.
type Client struct {
	client   pahomqtt.Client
	clientID string
	qos      byte

	connected atomic.Bool
	published atomic.Int64
	received  atomic.Int64
	failures  atomic.Int64

	mu            sync.RWMutex
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Stats is a snapshot of client activity for the status API.
type Stats struct {
	Subscriptions  int   `json:"subscriptions"`
	Published      int64 `json:"messages_published"`
	Received       int64 `json:"messages_received"`
	HandlerFailure int64 `json:"handler_failures"`
}

// Connect dials the broker and waits for the first connection.
//
// The offline will is registered before connecting; once connected the
// client publishes a retained "online" status.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed on refusal or timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID:      cfg.Broker.ClientID,
		qos:           byte(cfg.QoS), //nolint:gosec // Validated to 0-2
		subscriptions: make(map[string]subscription),
	}

	opts := clientOptions(cfg).
		SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) }).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			if l := c.getLogger(); l != nil {
				l.Warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
			}
		})

	c.client = pahomqtt.NewClient(opts)
	if err := await(c.client.Connect(), connectTimeout); err != nil {
		// Stop the connect retry loop paho started in the background.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; don't make callers wait for it.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.deliver(sub.handler))
	}
	callback := c.onConnect
	c.mu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), c.qos, true,
		statusPayload(statusOnline, "", c.clientID, time.Now()))

	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// deliver adapts a MessageHandler to paho, counting messages and turning
// errors and panics into log lines.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.received.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.failures.Add(1)
				if l := c.getLogger(); l != nil {
					l.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.failures.Add(1)
			if l := c.getLogger(); l != nil {
				l.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// Close publishes a retained graceful "offline" status and disconnects.
// Safe on a client that never connected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.qos, true,
			statusPayload(statusOffline, reasonShutdown, c.clientID, time.Now()))
		token.WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// Stats returns activity counters and the number of tracked subscriptions.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	subs := len(c.subscriptions)
	c.mu.RUnlock()
	return Stats{
		Subscriptions:  subs,
		Published:      c.published.Load(),
		Received:       c.received.Load(),
		HandlerFailure: c.failures.Load(),
	}
}

// SetOnConnect registers a callback run on every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the connection drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger. Without one, handler failures are only counted.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// await waits for a paho token.
func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return token.Error()
}
