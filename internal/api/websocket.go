package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsFramesHandler streams session frames, starting with the latest one.
func (s *Server) wsFramesHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "stream", "frames", "error", err)
		return
	}
	defer conn.Close()

	sub, last := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	gauge := metrics.WSClients.WithLabelValues("frames")
	gauge.Inc()
	defer gauge.Dec()

	var initial [][]byte
	if last != nil {
		initial = append(initial, last)
	} else {
		b, err := json.Marshal(s.session.Snapshot())
		if err == nil {
			initial = append(initial, b)
		}
	}

	if err := pump[[]byte](conn, initial, sub, func(b []byte) ([]byte, error) { return b, nil }); err != nil {
		s.logger.Debug("frames stream closed", "error", err)
	}
}

// wsEventsHandler streams the domain event log, starting with recent events.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "stream", "events", "error", err)
		return
	}
	defer conn.Close()

	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	gauge := metrics.WSClients.WithLabelValues("events")
	gauge.Inc()
	defer gauge.Dec()

	var initial [][]byte
	for _, e := range events.RecentEvents(recentEventsCount) {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		initial = append(initial, b)
	}

	encode := func(e events.Event) ([]byte, error) { return json.Marshal(e) }
	if err := pump[events.Event](conn, initial, sub, encode); err != nil {
		s.logger.Debug("events stream closed", "error", err)
	}
}

// pump writes initial then everything from ch until the peer goes away or ch closes.
// A reader goroutine handles pongs and close frames.
func pump[T any](conn *websocket.Conn, initial [][]byte, ch <-chan T, encode func(T) ([]byte, error)) error {
	for _, b := range initial {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil

		case v, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return nil
			}
			b, err := encode(v)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
