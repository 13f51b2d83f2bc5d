package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSwitchEvents is the measurement switch actions are written to.
const MeasurementSwitchEvents = "switch_events"

// SwitchEventPoint builds the point for one switch action.
//
// Tags are switch and action ("on" or "off") plus source. Fields are success
// and state, the latter being the state the switch ended up in (1 on, 0 off).
//
// Parameters:
//   - name: Switch friendly name
//   - action: "on" or "off"
//   - source: What triggered the action (hub, mqtt, auto_off)
//   - success: Whether the action handler reported success
//   - on: Resulting switch state
//   - timestamp: When the action completed
func SwitchEventPoint(name, action, source string, success, on bool, timestamp time.Time) *write.Point {
	state := 0
	if on {
		state = 1
	}
	return write.NewPoint(
		MeasurementSwitchEvents,
		map[string]string{
			"switch": name,
			"action": action,
			"source": source,
		},
		map[string]interface{}{
			"success": success,
			"state":   state,
		},
		timestamp,
	)
}

// WriteSwitchEvent records one switch action. The write is non-blocking;
// points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteSwitchEvent("Porch Light", "on", "hub", true, true, time.Now())
func (c *Client) WriteSwitchEvent(name, action, source string, success, on bool, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(SwitchEventPoint(name, action, source, success, on, timestamp))
	c.written.Add(1)
}
