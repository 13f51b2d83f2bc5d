package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for fauxswitch MQTT topics.
const (
	// TopicPrefixSwitch is the base for per-switch topics.
	TopicPrefixSwitch = "fauxswitch/switch"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fauxswitch/system"
)

// Topics provides builders for fauxswitch MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.SwitchState(mqtt.Slug("Porch Light"))
//	// Returns: "fauxswitch/switch/porch-light/state"
type Topics struct{}

// SwitchState returns the retained state topic of one switch.
//
// Example: fauxswitch/switch/porch-light/state
func (Topics) SwitchState(slug string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixSwitch, slug)
}

// SwitchSet returns the command topic of one switch.
// Payloads "on" and "off" (or {"on":true|false}) drive its action handler.
//
// Example: fauxswitch/switch/porch-light/set
func (Topics) SwitchSet(slug string) string {
	return fmt.Sprintf("%s/%s/set", TopicPrefixSwitch, slug)
}

// AllSwitchSets returns a pattern matching every switch command topic.
//
// Pattern: fauxswitch/switch/+/set
func (Topics) AllSwitchSets() string {
	return fmt.Sprintf("%s/+/set", TopicPrefixSwitch)
}

// SystemStatus returns the system status topic. It carries the LWT.
//
// Example: fauxswitch/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Slug converts a switch name into a topic segment: lower case, runs of
// anything other than letters and digits collapsed into one dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// SwitchSlug extracts the switch slug from a switch topic.
//
// Returns:
//   - string: The slug segment
//   - bool: false if topic is not a fauxswitch/switch/{slug}/... topic
func SwitchSlug(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixSwitch+"/")
	if !ok {
		return "", false
	}
	slug, _, ok := strings.Cut(rest, "/")
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}
