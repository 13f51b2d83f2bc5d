// Package api provides the read-mostly HTTP status API for fauxswitch.
//
// It reports the emulated switches (identity, advertised location, last known
// state), their recent action history when the event store is enabled, and
// process metrics. It never touches the sockets owned by the event loop; all
// data comes from snapshots.
//
// When a Hub is supplied, /api/v1/ws streams every switch event to
// WebSocket clients subscribed to the "switch.changed" channel. The Hub is
// also an action.EventSink, so it receives events the same way the SQLite
// store and InfluxDB do.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
