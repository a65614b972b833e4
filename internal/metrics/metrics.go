// Package metrics provides Prometheus metrics for the visualizer service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/version"
)

const namespace = "astarviz"

var startTime = time.Now()

var (
	// RunsTotal counts finished runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "runs_total",
			Help:      "Total number of search runs by outcome",
		},
		[]string{"outcome"}, // "found", "no_path", "reset", "error"
	)

	// RunsActive is 1 while a search is running.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "runs_active",
			Help:      "Number of currently running searches",
		},
	)

	// StepsTotal counts node expansions.
	StepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "steps_total",
			Help:      "Total number of node expansions",
		},
	)

	// RunSteps tracks expansions per finished run.
	RunSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "run_steps",
			Help:      "Node expansions per finished run",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 26, 50, 100},
		},
		[]string{"outcome"},
	)

	// RunDuration tracks wall time per finished run.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "run_duration_seconds",
			Help:      "Search run duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"speed"},
	)

	// FramesPublished counts frames handed to each sink.
	FramesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_published_total",
			Help:      "Total number of frames published by sink",
		},
		[]string{"sink"},
	)

	// CommandsTotal counts control commands by source and result.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Total number of control commands",
		},
		[]string{"source", "command", "result"}, // result: ok, rejected, error
	)

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ComponentUp reports whether an optional dependency is connected.
	ComponentUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_up",
			Help:      "Whether a dependency is connected (1) or not (0)",
		},
		[]string{"component"}, // "mqtt", "redis", "postgres"
	)

	// WSClients tracks open websocket connections by stream.
	WSClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Number of active WebSocket client connections",
		},
		[]string{"stream"},
	)

	_ = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the process started",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of domain events emitted since startup",
		},
		func() float64 { return float64(events.TotalCount()) },
	)

	_ = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build version of the running binary",
			ConstLabels: prometheus.Labels{"version": version.Version},
		},
		func() float64 { return 1 },
	)
)

// SetComponentUp records the connection state of a dependency.
func SetComponentUp(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	ComponentUp.WithLabelValues(component).Set(v)
}

// ObserveRun records a finished run.
func ObserveRun(outcome, speed string, steps int, elapsed time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunSteps.WithLabelValues(outcome).Observe(float64(steps))
	RunDuration.WithLabelValues(speed).Observe(elapsed.Seconds())
}
