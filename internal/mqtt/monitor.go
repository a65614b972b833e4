package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
)

// LinkState is a point-in-time view of the broker connection.
type LinkState struct {
	Connected   bool
	Since       time.Time
	Connects    int
	Disconnects int
	LastError   string
}

// Monitor tracks broker connectivity and reports transitions as events and metrics.
type Monitor struct {
	mu    sync.RWMutex
	url   string
	state LinkState
	now   func() time.Time
}

// NewMonitor creates a monitor for the broker at url, initially disconnected.
func NewMonitor(url string) *Monitor {
	m := &Monitor{url: url, now: time.Now}
	m.state.Since = m.now()
	return m
}

// HandleConnect records a successful (re)connect. Repeated calls while connected are ignored.
func (m *Monitor) HandleConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Connected {
		return
	}
	reconnect := m.state.Connects > 0
	m.state.Connected = true
	m.state.Since = m.now()
	m.state.Connects++
	m.state.LastError = ""

	metrics.SetComponentUp("mqtt", true)
	events.Emit("info", "bridge.connected", "", map[string]interface{}{
		"bridge":    "mqtt",
		"url":       m.url,
		"reconnect": reconnect,
	})
}

// HandleLost records a dropped connection.
func (m *Monitor) HandleLost(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Connected {
		return
	}
	m.state.Connected = false
	m.state.Since = m.now()
	m.state.Disconnects++
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.state.LastError = msg

	metrics.SetComponentUp("mqtt", false)
	events.Emit("warning", "bridge.disconnected", msg, map[string]interface{}{
		"bridge": "mqtt",
		"url":    m.url,
	})
}

// State returns a copy of the current link state.
func (m *Monitor) State() LinkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Check is a readiness check: it fails while the broker link is down.
func (m *Monitor) Check(context.Context) error {
	st := m.State()
	if st.Connected {
		return nil
	}
	if st.LastError != "" {
		return fmt.Errorf("mqtt disconnected since %s: %s", st.Since.Format(time.RFC3339), st.LastError)
	}
	return fmt.Errorf("mqtt disconnected since %s", st.Since.Format(time.RFC3339))
}
