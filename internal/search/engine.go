package search

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
)

// RunInfo is the progress report produced after every expansion.
type RunInfo struct {
	RunID   string        `json:"run_id,omitempty"`
	Current string        `json:"current,omitempty"`
	Cost    float64       `json:"cost"`
	Steps   int           `json:"steps"`
	Elapsed time.Duration `json:"elapsed"`
}

// Traversal is one edge walked by an expansion, from predecessor to the expanded node.
// Score is the fScore of the expanded node; Final marks the goal traversal.
type Traversal struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Score float64 `json:"score"`
	Final bool    `json:"final,omitempty"`
}

// StepResult describes the outcome of a single Step call.
type StepResult struct {
	State     State      `json:"state"`
	Current   string     `json:"current,omitempty"`
	Cost      float64    `json:"cost"`
	Steps     int        `json:"steps"`
	Path      []string   `json:"path,omitempty"`
	Traversal *Traversal `json:"traversal,omitempty"`
	Info      RunInfo    `json:"info"`
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	State  State    `json:"state"`
	Start  string   `json:"start,omitempty"`
	End    string   `json:"end,omitempty"`
	Open   []string `json:"open"`
	Closed []string `json:"closed"`
	Path   []string `json:"path"`
	Info   RunInfo  `json:"info"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithoutEvents disables event emission.
func WithoutEvents() Option {
	return func(e *Engine) { e.quiet = true }
}

// Engine runs A* one expansion at a time.
// It is not safe for concurrent use; callers serialize Start, Step and Reset.
type Engine struct {
	graph     *graph.Graph
	start     string
	end       string
	state     State
	search    *SearchState
	path      []string
	info      RunInfo
	startedAt time.Time
	now       func() time.Time
	quiet     bool
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		state: StateIdle,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Heuristic is the straight-line distance between two nodes of g.
func Heuristic(g *graph.Graph, a, b string) (float64, error) {
	pa, err := g.Position(a)
	if err != nil {
		return 0, err
	}
	pb, err := g.Position(b)
	if err != nil {
		return 0, err
	}
	return pa.Distance(pb), nil
}

// Start begins a new run from startID to endID.
// A finished run is discarded; an active run must be reset first.
func (e *Engine) Start(g *graph.Graph, startID, endID string) error {
	if e.state == StateRunning {
		e.emit("warning", "search.rejected", "search already running", map[string]interface{}{
			"run_id": e.info.RunID,
		})
		return &AlreadyRunningError{RunID: e.info.RunID}
	}
	if g == nil {
		return &InvalidEndpointsError{Start: startID, End: endID, Reason: "no graph"}
	}
	if startID == "" || endID == "" {
		return &InvalidEndpointsError{Start: startID, End: endID, Reason: "start and end must both be selected"}
	}
	if !g.Has(startID) || !g.Has(endID) {
		return &InvalidEndpointsError{Start: startID, End: endID, Reason: "endpoint not in graph"}
	}

	h, err := Heuristic(g, startID, endID)
	if err != nil {
		return err
	}

	ss := newSearchState(g)
	ss.gScore[startID] = 0
	ss.fScore[startID] = h
	ss.push(startID)

	e.graph = g
	e.start = startID
	e.end = endID
	e.search = ss
	e.path = nil
	e.startedAt = e.now()
	e.info = RunInfo{RunID: uuid.NewString()}
	e.state = StateRunning

	e.emit("info", "search.started", "", map[string]interface{}{
		"run_id": e.info.RunID,
		"graph":  g.Name(),
		"start":  startID,
		"end":    endID,
	})
	return nil
}

// Step performs one expansion and reports the resulting state.
// On a terminal run it returns the terminal result again without mutating anything.
func (e *Engine) Step() (StepResult, error) {
	switch {
	case e.state == StateIdle:
		return StepResult{State: StateIdle}, ErrNotStarted
	case e.state.Terminal():
		return e.terminalResult(), nil
	}

	ss := e.search
	if len(ss.open) == 0 {
		e.state = StateNoPath
		e.info.Elapsed = e.now().Sub(e.startedAt)
		e.emit("info", "search.no_path", "No path found!", map[string]interface{}{
			"run_id": e.info.RunID,
			"steps":  e.info.Steps,
		})
		return e.terminalResult(), nil
	}

	current := ss.popBest()
	ss.close(current)
	e.info.Steps++
	e.info.Current = current
	e.info.Cost = ss.g(current)
	e.info.Elapsed = e.now().Sub(e.startedAt)

	var trav *Traversal
	if prev, ok := ss.cameFrom[current]; ok {
		trav = &Traversal{From: prev, To: current, Score: ss.f(current)}
	}

	if current == e.end {
		if trav != nil {
			trav.Final = true
		}
		e.path = ss.pathTo(current)
		e.state = StateFound
		e.emit("info", "search.found", "", map[string]interface{}{
			"run_id":     e.info.RunID,
			"cost":       e.info.Cost,
			"steps":      e.info.Steps,
			"path":       append([]string(nil), e.path...),
			"elapsed_ms": float64(e.info.Elapsed.Microseconds()) / 1000,
		})
		res := e.terminalResult()
		res.Traversal = trav
		return res, nil
	}

	neighbors, err := e.graph.Neighbors(current)
	if err != nil {
		return StepResult{State: e.state}, fmt.Errorf("expand %s: %w", current, err)
	}
	for _, nb := range neighbors {
		if ss.closed[nb] {
			continue
		}
		edge, err := Heuristic(e.graph, current, nb)
		if err != nil {
			return StepResult{State: e.state}, fmt.Errorf("expand %s: %w", current, err)
		}
		tentative := ss.g(current) + edge
		if tentative < ss.g(nb) {
			h, err := Heuristic(e.graph, nb, e.end)
			if err != nil {
				return StepResult{State: e.state}, fmt.Errorf("expand %s: %w", current, err)
			}
			ss.cameFrom[nb] = current
			ss.gScore[nb] = tentative
			ss.fScore[nb] = tentative + h
			ss.push(nb)
		}
	}

	e.emit("debug", "search.expanded", "", map[string]interface{}{
		"run_id":  e.info.RunID,
		"node_id": current,
		"cost":    e.info.Cost,
		"steps":   e.info.Steps,
	})

	return StepResult{
		State:     StateRunning,
		Current:   current,
		Cost:      e.info.Cost,
		Steps:     e.info.Steps,
		Traversal: trav,
		Info:      e.info,
	}, nil
}

func (e *Engine) terminalResult() StepResult {
	res := StepResult{
		State:   e.state,
		Current: e.info.Current,
		Steps:   e.info.Steps,
		Info:    e.info,
	}
	if e.state == StateFound {
		res.Cost = e.info.Cost
		res.Path = append([]string(nil), e.path...)
	}
	return res
}

// Reset discards the current run and returns the engine to idle. Safe to call repeatedly.
func (e *Engine) Reset() {
	if e.state != StateIdle {
		e.emit("info", "search.reset", "", map[string]interface{}{
			"run_id": e.info.RunID,
			"state":  string(e.state),
		})
	}
	e.graph = nil
	e.start = ""
	e.end = ""
	e.search = nil
	e.path = nil
	e.info = RunInfo{}
	e.startedAt = time.Time{}
	e.state = StateIdle
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.state == StateRunning
}

// Info returns the latest progress report.
func (e *Engine) Info() RunInfo {
	return e.info
}

// Path returns the reconstructed path; empty until the run is Found.
func (e *Engine) Path() []string {
	return append([]string(nil), e.path...)
}

// Scores returns the current gScore and fScore of id (+Inf when unknown).
func (e *Engine) Scores(id string) (float64, float64) {
	if e.search == nil {
		return 0, 0
	}
	return e.search.g(id), e.search.f(id)
}

// Snapshot copies the open list, closed set (in expansion order) and path.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		State:  e.state,
		Start:  e.start,
		End:    e.end,
		Open:   []string{},
		Closed: []string{},
		Path:   []string{},
		Info:   e.info,
	}
	if e.search != nil {
		snap.Open = append(snap.Open, e.search.open...)
		snap.Closed = append(snap.Closed, e.search.closedOrder...)
	}
	snap.Path = append(snap.Path, e.path...)
	return snap
}

func (e *Engine) emit(level, name, msg string, fields map[string]interface{}) {
	if e.quiet {
		return
	}
	events.Emit(level, name, msg, fields)
}
