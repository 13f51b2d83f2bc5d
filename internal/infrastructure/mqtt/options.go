package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
)

const (
	connectTimeout    = 10 * time.Second
	operationTimeout  = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second

	maxQoS = 2

	// minReconnectDelay stops a zero reconnect setting from spinning.
	minReconnectDelay = time.Second
)

// Status values published on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonShutdown   = "graceful_shutdown"
	reasonConnection = "unexpected_disconnect"
)

// statusMessage is the retained payload of fauxswitch/system/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload encodes a status message. Marshalling a struct of strings
// cannot fail.
func statusPayload(status, reason, clientID string, now time.Time) []byte {
	data, _ := json.Marshal(statusMessage{ //nolint:errcheck // Plain string fields
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return data
}

// brokerURL returns tcp:// or ssl:// host:port.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// clientOptions maps the mqtt config section onto paho options, including
// the retained offline will on the system status topic. Sessions are clean:
// the set subscription is restored by the client itself after reconnect.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectDelay(cfg.Reconnect.InitialDelay)).
		SetMaxReconnectInterval(reconnectDelay(cfg.Reconnect.MaxDelay)).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	will := statusPayload(statusOffline, reasonConnection, cfg.Broker.ClientID, time.Now())
	opts.SetBinaryWill(Topics{}.SystemStatus(), will, 1, true)

	return opts
}

func reconnectDelay(seconds int) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d < minReconnectDelay {
		return minReconnectDelay
	}
	return d
}
