package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/search"
	"github.com/AaronLay10/astarviz/internal/session"
	"github.com/AaronLay10/astarviz/internal/version"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type GraphResponse struct {
	Name       string       `json:"name"`
	Nodes      []graph.Node `json:"nodes"`
	Bounds     graph.Point  `json:"bounds"`
	Asymmetric []graph.Edge `json:"asymmetric,omitempty"`
}

type CommandResponse struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Frame *session.Frame `json:"frame,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "astarviz",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{"session": "ok"}}
	status := http.StatusOK

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.fn(ctx)
		cancel()
		if err != nil {
			resp.Checks[c.name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (s *Server) graphHandler(w http.ResponseWriter, r *http.Request) {
	g := s.session.Graph()
	writeJSON(w, http.StatusOK, GraphResponse{
		Name:       g.Name(),
		Nodes:      g.Nodes(),
		Bounds:     g.Bounds(),
		Asymmetric: g.AsymmetricEdges(),
	})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, CommandResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, events.RecentEvents(limit))
}

// commandHandler decodes an optional JSON body into a session.Command and applies it.
// A non-empty name fixes the command; otherwise the body must name one.
func (s *Server) commandHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd session.Command
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, CommandResponse{Error: "unreadable body"})
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &cmd); err != nil {
				writeJSON(w, http.StatusBadRequest, CommandResponse{Error: "invalid JSON"})
				return
			}
		}
		if name != "" {
			cmd.Command = name
		}

		if err := s.session.Apply("http", cmd); err != nil {
			writeJSON(w, statusFor(err), CommandResponse{Error: err.Error()})
			return
		}

		frame := s.session.Snapshot()
		writeJSON(w, http.StatusOK, CommandResponse{OK: true, Frame: &frame})
	}
}

// statusFor maps session errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		unknownNode *graph.UnknownNodeError
		invalid     *search.InvalidEndpointsError
		running     *search.AlreadyRunningError
		badSpeed    *scheduler.InvalidSpeedError
		badCommand  *session.UnknownCommandError
	)
	switch {
	case errors.As(err, &unknownNode):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &badSpeed), errors.As(err, &badCommand):
		return http.StatusBadRequest
	case errors.As(err, &running),
		errors.Is(err, scheduler.ErrAlreadyRunning),
		errors.Is(err, session.ErrSpeedLocked):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
