package action

// Publisher is the subset of the MQTT client used by this package.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTT publishes a payload to a command topic per action, for switches
// whose real device is driven by another MQTT-connected service.
type MQTT struct {
	Client     Publisher
	Topic      string
	OnPayload  string
	OffPayload string
	QoS        byte

	Logger Logger
}

// TurnOn publishes OnPayload.
func (m *MQTT) TurnOn() bool { return m.publish(m.OnPayload) }

// TurnOff publishes OffPayload.
func (m *MQTT) TurnOff() bool { return m.publish(m.OffPayload) }

func (m *MQTT) publish(payload string) bool {
	logger := orNoop(m.Logger)
	if err := m.Client.Publish(m.Topic, []byte(payload), m.QoS, false); err != nil {
		logger.Warn("mqtt action failed", "topic", m.Topic, "error", err)
		return false
	}
	logger.Debug("mqtt action published", "topic", m.Topic, "payload", payload)
	return true
}
