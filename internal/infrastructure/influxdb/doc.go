// Package influxdb provides InfluxDB connectivity for fauxswitch.
//
// It wraps the official influxdb-client-go v2 library and records every
// switch action as a point in the switch_events measurement, so on/off
// history can be graphed next to other home telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSwitchEvent("Porch Light", "on", "hub", true, true, time.Now())
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
