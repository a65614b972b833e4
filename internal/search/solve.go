package search

import (
	"time"

	"github.com/AaronLay10/astarviz/internal/graph"
)

// Result is the outcome of a run-to-completion search.
type Result struct {
	Found   bool          `json:"found"`
	Path    []string      `json:"path"`
	Cost    float64       `json:"cost"`
	Steps   int           `json:"steps"`
	Elapsed time.Duration `json:"elapsed"`
}

// Solve runs a fresh engine from start to end without pausing between steps.
func Solve(g *graph.Graph, start, end string, opts ...Option) (Result, error) {
	e := NewEngine(opts...)
	if err := e.Start(g, start, end); err != nil {
		return Result{}, err
	}

	for {
		res, err := e.Step()
		if err != nil {
			return Result{}, err
		}
		if res.State.Terminal() {
			return Result{
				Found:   res.State == StateFound,
				Path:    res.Path,
				Cost:    res.Cost,
				Steps:   res.Steps,
				Elapsed: res.Info.Elapsed,
			}, nil
		}
	}
}
