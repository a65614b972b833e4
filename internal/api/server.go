package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/astarviz/internal/session"
)

// CheckFunc reports whether an optional dependency is usable.
type CheckFunc func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithAuth guards the control endpoints with basic auth.
func WithAuth(a *Auth) Option {
	return func(s *Server) { s.auth = a }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadinessCheck adds a named dependency check to /ready.
func WithReadinessCheck(name string, fn CheckFunc) Option {
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, fn: fn})
	}
}

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Server is the HTTP and websocket surface over one Session.
type Server struct {
	router  *mux.Router
	session *session.Session
	hub     *FrameHub
	auth    *Auth
	logger  *slog.Logger
	checks  []namedCheck
}

// NewServer builds the router and registers the frame hub as a session publisher.
func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		session: sess,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.auth == nil {
		s.auth = &Auth{}
	}
	s.hub = NewFrameHub(s.logger)
	sess.AddPublisher(s.hub)
	s.setupRoutes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket frame hub.
func (s *Server) Hub() *FrameHub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", uiHandler).Methods("GET")
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/ready", s.readyHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.HandleFunc("/ws/frames", s.wsFramesHandler).Methods("GET")
	s.router.HandleFunc("/ws/events", s.wsEventsHandler).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/graph", s.graphHandler).Methods("GET")
	api.HandleFunc("/state", s.stateHandler).Methods("GET")
	api.HandleFunc("/events", s.eventsHandler).Methods("GET")

	for _, name := range []string{"hover", "select", "click", "run", "reset", "speed"} {
		api.HandleFunc("/"+name, s.auth.RequireAnyRole(s.commandHandler(name))).Methods("POST")
	}
	api.HandleFunc("/command", s.auth.RequireAnyRole(s.commandHandler(""))).Methods("POST")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// A non-nil tlsCfg serves HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsCfg != nil {
			s.logger.Info("api listening", "addr", addr, "tls", true)
			err = srv.ListenAndServeTLS("", "")
		} else {
			s.logger.Info("api listening", "addr", addr, "tls", false)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
