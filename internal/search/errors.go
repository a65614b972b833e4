package search

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned by Step when no run has been started.
var ErrNotStarted = errors.New("search not started")

// InvalidEndpointsError indicates start/end are not both selected or not in the graph.
type InvalidEndpointsError struct {
	Start  string
	End    string
	Reason string
}

func (e *InvalidEndpointsError) Error() string {
	return fmt.Sprintf("invalid endpoints start=%q end=%q: %s", e.Start, e.End, e.Reason)
}

// AlreadyRunningError indicates a start was requested while a run is active.
type AlreadyRunningError struct {
	RunID string
}

func (e *AlreadyRunningError) Error() string {
	if e.RunID == "" {
		return "search already running"
	}
	return "search already running: " + e.RunID
}
