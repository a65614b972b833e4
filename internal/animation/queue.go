package animation

import (
	"math"

	"github.com/AaronLay10/astarviz/internal/graph"
)

const (
	// MinSpeed is the slowest per-tick progress an edge may have.
	MinSpeed = 0.002
	// MaxSpeed completes an edge in one tick at 1x.
	MaxSpeed = 1.0
	// FinalEdgeSpeed is used for the traversal into the goal.
	FinalEdgeSpeed = 0.02
	// scoreScale maps fScore onto speed: scoreScale * (f+1)^-2.
	scoreScale = 10000.0
)

// Edge is one traversal being drawn from Start to End.
type Edge struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	Start    graph.Point `json:"start"`
	End      graph.Point `json:"end"`
	Progress float64     `json:"progress"`
	Speed    float64     `json:"speed"`
}

// Done reports whether the edge is fully drawn.
func (e Edge) Done() bool {
	return e.Progress >= 1
}

// Head is the current tip of the partially drawn edge.
func (e Edge) Head() graph.Point {
	return graph.Point{
		X: e.Start.X + (e.End.X-e.Start.X)*e.Progress,
		Y: e.Start.Y + (e.End.Y-e.Start.Y)*e.Progress,
	}
}

// SpeedForScore maps an fScore to an edge speed. Lower scores draw faster.
func SpeedForScore(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return MinSpeed
	}
	return clampSpeed(scoreScale * math.Pow(f+1, -2))
}

func clampSpeed(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, -1) || v <= 0:
		return MinSpeed
	case v < MinSpeed:
		return MinSpeed
	case v > MaxSpeed:
		return MaxSpeed
	}
	return v
}

func clampProgress(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Queue holds every edge of the current run in push order.
// It is not safe for concurrent use.
type Queue struct {
	edges []Edge
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends e after clamping its speed and progress.
func (q *Queue) Push(e Edge) {
	e.Speed = clampSpeed(e.Speed)
	e.Progress = clampProgress(e.Progress)
	q.edges = append(q.edges, e)
}

// Advance moves every unfinished edge forward by speed*multiplier.
// It reports whether any edge moved.
func (q *Queue) Advance(multiplier float64) bool {
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier <= 0 {
		return false
	}
	moved := false
	for i := range q.edges {
		e := &q.edges[i]
		if e.Done() {
			continue
		}
		e.Progress = math.Min(1, e.Progress+e.Speed*multiplier)
		moved = true
	}
	return moved
}

// HasPending reports whether any edge is still being drawn.
func (q *Queue) HasPending() bool {
	for _, e := range q.edges {
		if !e.Done() {
			return true
		}
	}
	return false
}

// Edges returns a copy of the queue.
func (q *Queue) Edges() []Edge {
	return append([]Edge{}, q.edges...)
}

// Len returns the number of edges, finished or not.
func (q *Queue) Len() int {
	return len(q.edges)
}

// Reset drops every edge.
func (q *Queue) Reset() {
	q.edges = nil
}
