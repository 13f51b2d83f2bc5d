package fauxmo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Protocol constants a hub expects from a WeMo socket.
const (
	// ServerVersion is sent in SERVER headers.
	ServerVersion = "Unspecified, UPnP/1.0, Unspecified"

	// UserAgentHeader is the extra header real sockets add to every reply.
	UserAgentHeader = "X-User-Agent: redsonic"

	// persistentPrefix precedes the serial in the UDN and USN.
	persistentPrefix = "Socket-1_0-"

	// lastModified is the fixed LAST-MODIFIED stamp of setup.xml.
	lastModified = "Sat, 01 Jan 2000 00:01:15 GMT"

	// serialLength is the length of a derived serial.
	serialLength = 14

	// serialSalt is appended to the name before hex-encoding it.
	serialSalt = "fauxmo!"
)

// Request markers.
const (
	setupRequestPrefix = "GET /setup.xml"
	soapActionMarker   = `soapaction: "urn:belkin:service:basicevent:1#setbinarystate"`
	binaryStateOn      = "<BinaryState>1</BinaryState>"
	binaryStateOff     = "<BinaryState>0</BinaryState>"
)

// requestKind classifies a control request.
type requestKind int

const (
	requestUnknown requestKind = iota
	requestSetup
	requestSetOn
	requestSetOff
	requestSetNoState
)

func (k requestKind) String() string {
	switch k {
	case requestSetup:
		return "setup"
	case requestSetOn:
		return "set_on"
	case requestSetOff:
		return "set_off"
	case requestSetNoState:
		return "set_no_state"
	default:
		return "unknown"
	}
}

// classify inspects raw request bytes. The setup request must start the
// data; the SOAP action header is matched case-insensitively anywhere; the
// state markers are matched exactly, "on" first.
func classify(data []byte) requestKind {
	if bytes.HasPrefix(data, []byte(setupRequestPrefix)) {
		return requestSetup
	}
	if !bytes.Contains(bytes.ToLower(data), []byte(soapActionMarker)) {
		return requestUnknown
	}
	switch {
	case bytes.Contains(data, []byte(binaryStateOn)):
		return requestSetOn
	case bytes.Contains(data, []byte(binaryStateOff)):
		return requestSetOff
	default:
		return requestSetNoState
	}
}

// MakeSerial derives the 14 character serial of a switch from its name: the
// hex sum of the name's code points followed by the hex of each code point
// of name+"fauxmo!". Hubs remember devices by serial, so this must never
// change.
func MakeSerial(name string) string {
	var sum int
	for _, r := range name {
		sum += int(r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%x", sum)
	for _, r := range name + serialSalt {
		fmt.Fprintf(&b, "%x", r)
		if b.Len() >= serialLength {
			break
		}
	}

	serial := b.String()
	if len(serial) > serialLength {
		serial = serial[:serialLength]
	}
	return serial
}

// setupXML renders the device description.
func setupXML(name, serial string) []byte {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(name)) //nolint:errcheck // bytes.Buffer writes never fail

	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\"?>\n")
	b.WriteString("<root>\n")
	b.WriteString("  <device>\n")
	b.WriteString("    <deviceType>urn:MakerMusings:device:controllee:1</deviceType>\n")
	fmt.Fprintf(&b, "    <friendlyName>%s</friendlyName>\n", escaped.String())
	b.WriteString("    <manufacturer>Belkin International Inc.</manufacturer>\n")
	b.WriteString("    <modelName>Emulated Socket</modelName>\n")
	b.WriteString("    <modelNumber>3.1415</modelNumber>\n")
	fmt.Fprintf(&b, "    <UDN>uuid:%s%s</UDN>\n", persistentPrefix, serial)
	b.WriteString("  </device>\n")
	b.WriteString("</root>\n")
	return b.Bytes()
}

// httpDate formats t the way HTTP DATE headers expect.
func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// writeHeaders writes CRLF-terminated header lines.
func writeHeaders(b *bytes.Buffer, lines ...string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
}

// setupResponse builds the full reply to GET /setup.xml.
func setupResponse(name, serial string, extra []string, now time.Time) []byte {
	body := setupXML(name, serial)

	var b bytes.Buffer
	writeHeaders(&b,
		"HTTP/1.1 200 OK",
		fmt.Sprintf("CONTENT-LENGTH: %d", len(body)),
		"CONTENT-TYPE: text/xml",
		"DATE: "+httpDate(now),
		"LAST-MODIFIED: "+lastModified,
		"SERVER: "+ServerVersion,
	)
	writeHeaders(&b, extra...)
	writeHeaders(&b, "CONNECTION: close", "")
	b.Write(body)
	return b.Bytes()
}

// binaryStateResponse builds the reply to a successful SetBinaryState. The
// hub only looks at the status line, so the body is empty.
func binaryStateResponse(extra []string, now time.Time) []byte {
	var b bytes.Buffer
	writeHeaders(&b,
		"HTTP/1.1 200 OK",
		"CONTENT-LENGTH: 0",
		`CONTENT-TYPE: text/xml charset="utf-8"`,
		"DATE: "+httpDate(now),
		"EXT:",
		"SERVER: "+ServerVersion,
	)
	writeHeaders(&b, extra...)
	writeHeaders(&b, "CONNECTION: close", "")
	return b.Bytes()
}

// searchResponse builds the unicast SSDP reply to an M-SEARCH.
func searchResponse(location, sessionID, persistentID, st string, extra []string, now time.Time) []byte {
	var b bytes.Buffer
	writeHeaders(&b,
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=86400",
		"DATE: "+httpDate(now),
		"EXT:",
		"LOCATION: "+location,
		`OPT: "http://schemas.upnp.org/upnp/1/0/"; ns=01`,
		"01-NLS: "+sessionID,
		"SERVER: "+ServerVersion,
		"ST: "+st,
		fmt.Sprintf("USN: uuid:%s::%s", persistentID, st),
	)
	writeHeaders(&b, extra...)
	writeHeaders(&b, "")
	return b.Bytes()
}
