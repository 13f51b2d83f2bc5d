// Package discovery answers SSDP searches on behalf of emulated switches.
//
// A Responder owns one UDP socket bound to the SSDP port and joined to the
// SSDP multicast group. Each readable datagram is checked for an M-SEARCH
// naming the one recognised search target; a match is fanned out to every
// registered Device in registration order, pausing before each reply so a
// hub is not flooded.
//
// Only the hub's WeMo search (urn:Belkin:device:** by default) is answered.
// Root-device and ssdp:all searches are ignored.
package discovery
