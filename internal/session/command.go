package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/scheduler"
)

// Command is a remote control request, shared by the HTTP and MQTT surfaces.
type Command struct {
	Command string   `json:"command"`
	NodeID  string   `json:"node_id,omitempty"`
	Speed   string   `json:"speed,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// ParseCommand decodes a JSON command payload.
func ParseCommand(b []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(b, &c); err != nil {
		return Command{}, fmt.Errorf("invalid command payload: %w", err)
	}
	c.Command = strings.ToLower(strings.TrimSpace(c.Command))
	if c.Command == "" {
		return Command{}, fmt.Errorf("invalid command payload: command required")
	}
	return c, nil
}

// Apply dispatches c to the matching Session operation. source labels the surface
// the command arrived on ("http", "mqtt", ...).
func (s *Session) Apply(source string, c Command) error {
	events.Emit("debug", "command.received", "", map[string]interface{}{
		"source":  source,
		"command": c.Command,
		"node_id": c.NodeID,
	})

	err := s.apply(c)
	result := "ok"
	if err != nil {
		result = "rejected"
		events.Emit("warning", "command.rejected", err.Error(), map[string]interface{}{
			"source":  source,
			"command": c.Command,
		})
	}
	metrics.CommandsTotal.WithLabelValues(source, commandLabel(c.Command), result).Inc()
	return err
}

func (s *Session) apply(c Command) error {
	switch c.Command {
	case "hover":
		if c.X != nil && c.Y != nil {
			_, err := s.HoverAt(graph.Point{X: *c.X, Y: *c.Y})
			return err
		}
		return s.Hover(c.NodeID)
	case "click":
		_, err := s.Click()
		return err
	case "select":
		_, err := s.Select(c.NodeID)
		return err
	case "run":
		return s.Run()
	case "reset":
		return s.Reset()
	case "speed":
		sp, err := scheduler.ParseSpeed(c.Speed)
		if err != nil {
			return err
		}
		return s.SetSpeed(sp)
	}
	return &UnknownCommandError{Command: c.Command}
}

// commandLabel bounds metric label cardinality.
func commandLabel(name string) string {
	switch name {
	case "hover", "click", "select", "run", "reset", "speed":
		return name
	}
	return "unknown"
}
