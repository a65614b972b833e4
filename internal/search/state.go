package search

import (
	"math"
	"sort"

	"github.com/AaronLay10/astarviz/internal/graph"
)

// State is the lifecycle state of a search run.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFound   State = "found"
	StateNoPath  State = "no_path"
)

// Terminal reports whether no further step can change the run.
func (s State) Terminal() bool {
	return s == StateFound || s == StateNoPath
}

// SearchState is the per-run frontier and cost bookkeeping.
// A node is in at most one of open and closed; closed nodes never reopen.
type SearchState struct {
	open        []string
	inOpen      map[string]bool
	closed      map[string]bool
	closedOrder []string
	cameFrom    map[string]string
	gScore      map[string]float64
	fScore      map[string]float64
}

func newSearchState(g *graph.Graph) *SearchState {
	ss := &SearchState{
		inOpen:   make(map[string]bool),
		closed:   make(map[string]bool),
		cameFrom: make(map[string]string),
		gScore:   make(map[string]float64, g.Len()),
		fScore:   make(map[string]float64, g.Len()),
	}
	for _, id := range g.IDs() {
		ss.gScore[id] = math.Inf(1)
		ss.fScore[id] = math.Inf(1)
	}
	return ss
}

func (ss *SearchState) g(id string) float64 {
	if v, ok := ss.gScore[id]; ok {
		return v
	}
	return math.Inf(1)
}

func (ss *SearchState) f(id string) float64 {
	if v, ok := ss.fScore[id]; ok {
		return v
	}
	return math.Inf(1)
}

func (ss *SearchState) push(id string) {
	if ss.inOpen[id] {
		return
	}
	ss.open = append(ss.open, id)
	ss.inOpen[id] = true
}

// popBest removes the open node with the lowest fScore.
// The open list is stably re-sorted in place, so equal scores keep their list order
// and the sorted order carries over to the next step.
func (ss *SearchState) popBest() string {
	sort.SliceStable(ss.open, func(i, j int) bool {
		return ss.f(ss.open[i]) < ss.f(ss.open[j])
	})
	id := ss.open[0]
	ss.open = ss.open[1:]
	delete(ss.inOpen, id)
	return id
}

func (ss *SearchState) close(id string) {
	ss.closed[id] = true
	ss.closedOrder = append(ss.closedOrder, id)
}

// pathTo walks cameFrom back from id and returns the path in start-to-id order.
func (ss *SearchState) pathTo(id string) []string {
	path := []string{id}
	seen := map[string]bool{id: true}
	for {
		prev, ok := ss.cameFrom[id]
		if !ok || seen[prev] {
			break
		}
		path = append(path, prev)
		seen[prev] = true
		id = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
