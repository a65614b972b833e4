package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/session"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) session.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var f session.Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("failed to unmarshal frame: %v", err)
	}
	return f
}

func TestFrameStreamSendsSnapshotFirst(t *testing.T) {
	s, sess := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dial(t, srv, "/ws/frames")
	f := readFrame(t, conn)
	if f.Graph != "diamond" {
		t.Errorf("expected diamond graph, got %q", f.Graph)
	}
	if f.Status.Message != session.MsgSelectStart {
		t.Errorf("unexpected initial status %q", f.Status.Message)
	}

	waitFor(t, 2*time.Second, func() bool { return s.Hub().Count() == 1 }, "frame subscriber registered")

	if _, err := sess.Select("top"); err != nil {
		t.Fatal(err)
	}
	f = readFrame(t, conn)
	if f.Start != "top" || f.Reason != session.ReasonSelect {
		t.Errorf("expected select frame for top, got start=%q reason=%s", f.Start, f.Reason)
	}
}

func TestFrameStreamStartsFromLatestFrame(t *testing.T) {
	s, sess := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	if _, err := sess.Select("left"); err != nil {
		t.Fatal(err)
	}

	conn := dial(t, srv, "/ws/frames")
	if f := readFrame(t, conn); f.Start != "left" {
		t.Errorf("expected latest frame with start left, got %q", f.Start)
	}
}

func TestFrameStreamDisconnectCleansUp(t *testing.T) {
	s, sess := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dial(t, srv, "/ws/frames")
	readFrame(t, conn)
	waitFor(t, 2*time.Second, func() bool { return s.Hub().Count() == 1 }, "frame subscriber registered")

	conn.Close()
	for i := 0; i < 5 && s.Hub().Count() > 0; i++ {
		sess.Hover("top")
		sess.Hover("")
		time.Sleep(50 * time.Millisecond)
	}

	waitFor(t, 5*time.Second, func() bool { return s.Hub().Count() == 0 }, "frame subscribers to drop to 0")
}

func TestEventStreamReceivesRecentEvents(t *testing.T) {
	events.Clear()
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	for i := 0; i < 5; i++ {
		events.Emit("info", "speed.changed", "", map[string]interface{}{"i": i})
	}

	conn := dial(t, srv, "/ws/events")

	received := 0
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var e events.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if e.Name == "speed.changed" {
			received++
		}
	}

	if received != 5 {
		t.Errorf("expected 5 recent events, got %d", received)
	}
}

func TestEventStreamReceivesNewEvents(t *testing.T) {
	events.Clear()
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dial(t, srv, "/ws/events")
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() > 0 }, "event subscriber registered")

	events.Emit("info", "search.found", "", map[string]interface{}{"cost": "282.84"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read new event: %v", err)
		}
		var e events.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if e.Name != "search.found" {
			continue
		}
		if e.Fields["cost"] != "282.84" {
			t.Errorf("expected cost 282.84, got %v", e.Fields["cost"])
		}
		return
	}
}

func TestHubCloseEndsStreams(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dial(t, srv, "/ws/frames")
	readFrame(t, conn)
	waitFor(t, 2*time.Second, func() bool { return s.Hub().Count() == 1 }, "frame subscriber registered")

	s.Hub().Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}
