package graph

import (
	"fmt"
	"math"
)

// Point is a 2-D coordinate in graph space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Node is a single vertex with a position and its outgoing adjacency.
type Node struct {
	ID        string   `json:"id" yaml:"id"`
	X         float64  `json:"x" yaml:"x"`
	Y         float64  `json:"y" yaml:"y"`
	Neighbors []string `json:"neighbors" yaml:"neighbors"`
}

// Position returns the node coordinate.
func (n Node) Position() Point {
	return Point{X: n.X, Y: n.Y}
}

// Graph is an immutable set of nodes keyed by id.
// It is built once and only read afterwards.
type Graph struct {
	name  string
	nodes map[string]Node
	order []string
}

// UnknownNodeError is returned when a query names an id the graph does not hold.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node: %q", e.ID)
}

// FromNodes builds a graph from nodes in authored order.
// Duplicate or empty ids and non-finite coordinates are rejected; dangling neighbor
// ids are reported by Validate.
func FromNodes(name string, nodes []Node) (*Graph, error) {
	g := &Graph{
		name:  name,
		nodes: make(map[string]Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		if !finite(n.X) || !finite(n.Y) {
			return nil, fmt.Errorf("node %s: non-finite position (%v, %v)", n.ID, n.X, n.Y)
		}
		n.Neighbors = append([]string(nil), n.Neighbors...)
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	return g, nil
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// IDs returns node ids in authored order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, &UnknownNodeError{ID: id}
	}
	n.Neighbors = append([]string(nil), n.Neighbors...)
	return n, nil
}

// Nodes returns copies of all nodes in authored order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		n := g.nodes[id]
		n.Neighbors = append([]string(nil), n.Neighbors...)
		out = append(out, n)
	}
	return out
}

// Neighbors returns the ordered neighbor ids of id.
func (g *Graph) Neighbors(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &UnknownNodeError{ID: id}
	}
	return append([]string(nil), n.Neighbors...), nil
}

// Position returns the coordinate of id.
func (g *Graph) Position(id string) (Point, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Point{}, &UnknownNodeError{ID: id}
	}
	return n.Position(), nil
}

// Bounds returns the largest X and Y over all nodes.
func (g *Graph) Bounds() Point {
	var b Point
	for _, n := range g.nodes {
		b.X = math.Max(b.X, n.X)
		b.Y = math.Max(b.Y, n.Y)
	}
	return b
}

// HitRadius is the half-width of the square around a node that counts as hovering it.
const HitRadius = 10.0

// NodeAt returns the first node, in authored order, whose hit square of half-width r
// contains p. A non-positive r uses HitRadius.
func (g *Graph) NodeAt(p Point, r float64) (string, bool) {
	if r <= 0 {
		r = HitRadius
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if p.X > n.X-r && p.X < n.X+r && p.Y > n.Y-r && p.Y < n.Y+r {
			return id, true
		}
	}
	return "", false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Edge is a directed adjacency entry.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate checks that every neighbor id refers to a node of the graph.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, nb := range g.nodes[id].Neighbors {
			if _, ok := g.nodes[nb]; !ok {
				return fmt.Errorf("node %s: %w", id, &UnknownNodeError{ID: nb})
			}
		}
	}
	return nil
}

// AsymmetricEdges lists edges A->B whose reverse B->A is missing.
// Traversal does not require symmetry, so these are warnings only.
func (g *Graph) AsymmetricEdges() []Edge {
	var out []Edge
	for _, id := range g.order {
		for _, nb := range g.nodes[id].Neighbors {
			other, ok := g.nodes[nb]
			if !ok {
				continue
			}
			if !contains(other.Neighbors, id) {
				out = append(out, Edge{From: id, To: nb})
			}
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
