// Package action provides the on/off capabilities emulated switches delegate
// to, plus decorators that record what happened and schedule follow-ups.
//
// A switch built from configuration is wired as
//
//	Recorder(FollowUp(base))
//
// where base is one of Static, HTTP, Command or MQTT. The Recorder is the
// single entry point for every trigger (hub request, MQTT set command,
// deferred auto-off), serialises calls per switch, keeps the last known state
// for the status API, and fans each outcome out to the configured EventSinks.
//
// Handlers called from the event loop block it. HTTP and Command handlers
// therefore always run with a timeout.
package action
