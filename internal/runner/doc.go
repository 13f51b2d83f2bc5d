// Package runner wires the poller, the discovery responder and every
// emulated switch together and drives the event loop.
//
// All sockets live on the goroutine that calls Run. Other goroutines (the
// status API, MQTT callbacks, deferred auto-off tasks) only read immutable
// switch identity or go through each switch's action.Recorder, which is safe
// for concurrent use.
package runner
