package runner

import (
	"fmt"
	"strings"

	"github.com/nerrad567/fauxswitch/internal/fauxmo"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/config"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
)

// checkIdentities rejects switch names the hub or the broker could not tell
// apart. Serials must be unique because the hub keys devices by UDN. Topic
// slugs are checked only when MQTT is enabled, and must also be non-empty.
func checkIdentities(cfg *config.Config) error {
	var errs []string

	serials := make(map[string]string, len(cfg.Switches))
	slugs := make(map[string]string, len(cfg.Switches))
	for _, sc := range cfg.Switches {
		serial := fauxmo.MakeSerial(sc.Name)
		if other, ok := serials[serial]; ok {
			errs = append(errs, fmt.Sprintf("%q and %q share serial %s", other, sc.Name, serial))
		} else {
			serials[serial] = sc.Name
		}

		if !cfg.MQTT.Enabled {
			continue
		}
		slug := mqtt.Slug(sc.Name)
		switch other, ok := slugs[slug]; {
		case slug == "":
			errs = append(errs, fmt.Sprintf("%q has no letters or digits for its MQTT topic", sc.Name))
		case ok:
			errs = append(errs, fmt.Sprintf("%q and %q share MQTT topic segment %q", other, sc.Name, slug))
		default:
			slugs[slug] = sc.Name
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrIdentityClash, strings.Join(errs, "; "))
	}
	return nil
}
