package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// search
	"search.started":  {},
	"search.expanded": {},
	"search.found":    {},
	"search.no_path":  {},
	"search.reset":    {},
	"search.rejected": {},

	// selection
	"selection.start":   {},
	"selection.end":     {},
	"selection.cleared": {},

	// speed
	"speed.changed": {},

	// graph sources
	"graph.loaded":   {},
	"graph.imported": {},

	// outbound bridges (mqtt, redis)
	"bridge.connected":    {},
	"bridge.disconnected": {},

	// remote commands (http, mqtt)
	"command.received": {},
	"command.rejected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate returns an error for event names outside the allow-list.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
