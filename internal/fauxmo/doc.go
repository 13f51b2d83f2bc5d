// Package fauxmo emulates a Belkin WeMo smart socket.
//
// A Switch owns one endpoint.Endpoint and answers the two requests a
// voice-assistant hub makes of a WeMo socket:
//
//	GET /setup.xml                 device description (friendly name, UDN)
//	POST ... SOAPACTION SetBinaryState with <BinaryState>1</BinaryState> or 0
//
// State changes are delegated to an ActionHandler. When the handler reports
// success the switch answers 200 OK with an empty body; when it reports
// failure nothing is written and the connection is closed, which the hub
// shows as "device not responding".
//
// RespondToSearch sends the unicast SSDP reply that advertises the switch to
// a hub. The discovery package calls it once per search.
package fauxmo
