package session

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/astarviz/internal/animation"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/search"
)

// Status prompts shown to the viewer.
const (
	MsgSelectStart = "Please select a start node."
	MsgSelectEnd   = "Please select an end node."
	MsgReady       = "Click run to start."
	MsgNoPath      = "No path found!"
)

// Field is one labelled value of a progress report.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Status is either a plain message or a list of fields, never both.
type Status struct {
	Message string  `json:"message,omitempty"`
	Fields  []Field `json:"fields,omitempty"`
}

// Message builds a message status.
func Message(msg string) Status {
	return Status{Message: msg}
}

// Fields builds a field-list status.
func Fields(fields ...Field) Status {
	return Status{Fields: fields}
}

// Value returns the value of the named field.
func (s Status) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (s Status) String() string {
	if len(s.Fields) == 0 {
		return s.Message
	}
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Value))
	}
	return strings.Join(parts, ", ")
}

// Reason names the transition that produced a frame.
type Reason string

const (
	ReasonInit   Reason = "init"
	ReasonHover  Reason = "hover"
	ReasonSelect Reason = "select"
	ReasonRun    Reason = "run"
	ReasonStep   Reason = "step"
	ReasonTick   Reason = "tick"
	ReasonReset  Reason = "reset"
	ReasonSpeed  Reason = "speed"
)

// Transient reports whether frames with this reason only matter to a live viewer.
// Outbound bridges skip them.
func (r Reason) Transient() bool {
	return r == ReasonTick || r == ReasonHover
}

// Frame is everything a presentation surface needs to draw one picture.
type Frame struct {
	Sequence     uint64           `json:"seq"`
	Reason       Reason           `json:"reason"`
	Graph        string           `json:"graph"`
	State        search.State     `json:"state"`
	Open         []string         `json:"open"`
	Closed       []string         `json:"closed"`
	Path         []string         `json:"path"`
	Edges        []animation.Edge `json:"edges"`
	Start        string           `json:"start,omitempty"`
	End          string           `json:"end,omitempty"`
	Hovered      string           `json:"hovered,omitempty"`
	Running      bool             `json:"running"`
	Speed        scheduler.Speed  `json:"speed"`
	Status       Status           `json:"status"`
	PathRevealed bool             `json:"path_revealed"`
}

// Publisher receives every frame in order.
// Publish is called with the session lock held: it must not block or call back into the Session.
type Publisher interface {
	Publish(Frame)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Frame)

func (f PublisherFunc) Publish(fr Frame) { f(fr) }

func formatCost(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
