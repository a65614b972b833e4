package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/AaronLay10/astarviz/internal/config"
	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
)

// ErrGraphNotFound is returned when no graph is stored under a name.
var ErrGraphNotFound = errors.New("graph not found")

// GraphInfo summarizes a stored graph.
type GraphInfo struct {
	Name       string    `json:"name"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	ImportedAt time.Time `json:"imported_at"`
}

// Store keeps authored graphs in Postgres.
type Store struct {
	db *sql.DB
}

// ConnString builds a lib/pq connection string from the standard PG* environment.
// The password honors PGPASSWORD_FILE.
func ConnString() (string, error) {
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}
	params := []string{
		connParam("host", getEnv("PGHOST", "127.0.0.1")),
		connParam("port", getEnv("PGPORT", "5432")),
		connParam("user", getEnv("PGUSER", "astarviz")),
	}
	if password != "" {
		params = append(params, connParam("password", password))
	}
	params = append(params,
		connParam("dbname", getEnv("PGDATABASE", "astarviz")),
		connParam("sslmode", getEnv("PGSSLMODE", "disable")),
	)
	return strings.Join(params, " "), nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// connParam quotes v when it is empty or holds spaces, quotes or backslashes.
func connParam(k, v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return k + "=" + v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return k + "='" + r.Replace(v) + "'"
}

// New connects using ConnString.
func New(ctx context.Context) (*Store, error) {
	connStr, err := ConnString()
	if err != nil {
		return nil, err
	}
	return Open(ctx, connStr)
}

// Open connects to connStr, pings, and creates the schema if missing.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create graph tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS graphs (
			name        TEXT PRIMARY KEY,
			imported_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS graph_nodes (
			graph_name TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
			node_id    TEXT NOT NULL,
			x          DOUBLE PRECISION NOT NULL,
			y          DOUBLE PRECISION NOT NULL,
			position   INTEGER NOT NULL,
			PRIMARY KEY (graph_name, node_id)
		);
		CREATE TABLE IF NOT EXISTS graph_edges (
			graph_name TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			position   INTEGER NOT NULL,
			PRIMARY KEY (graph_name, from_id, to_id)
		);
		CREATE INDEX IF NOT EXISTS idx_graph_nodes_position ON graph_nodes(graph_name, position);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Ping checks the connection. It doubles as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// nodeColumns flattens nodes into parallel arrays for an unnest insert.
type nodeColumns struct {
	ids       []string
	xs        []float64
	ys        []float64
	positions []int64
}

// edgeColumns flattens adjacency into parallel arrays. Position keeps neighbor order.
type edgeColumns struct {
	from      []string
	to        []string
	positions []int64
}

func columnsFor(g *graph.Graph) (nodeColumns, edgeColumns) {
	var nc nodeColumns
	var ec edgeColumns
	for i, n := range g.Nodes() {
		nc.ids = append(nc.ids, n.ID)
		nc.xs = append(nc.xs, n.X)
		nc.ys = append(nc.ys, n.Y)
		nc.positions = append(nc.positions, int64(i))
		for j, to := range n.Neighbors {
			ec.from = append(ec.from, n.ID)
			ec.to = append(ec.to, to)
			ec.positions = append(ec.positions, int64(j))
		}
	}
	return nc, ec
}

// ImportGraph stores g under its name, replacing any previous version.
func (s *Store) ImportGraph(ctx context.Context, g *graph.Graph) error {
	if g.Name() == "" {
		return fmt.Errorf("import graph: name required")
	}
	nc, ec := columnsFor(g)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE name = $1`, g.Name()); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs (name, imported_at) VALUES ($1, $2)`,
		g.Name(), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO graph_nodes (graph_name, node_id, x, y, position)
		SELECT $1, * FROM unnest($2::text[], $3::float8[], $4::float8[], $5::int[])
	`, g.Name(), pq.Array(nc.ids), pq.Array(nc.xs), pq.Array(nc.ys), pq.Array(nc.positions)); err != nil {
		return fmt.Errorf("import graph nodes: %w", err)
	}

	if len(ec.from) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_edges (graph_name, from_id, to_id, position)
			SELECT $1, * FROM unnest($2::text[], $3::text[], $4::int[])
		`, g.Name(), pq.Array(ec.from), pq.Array(ec.to), pq.Array(ec.positions)); err != nil {
			return fmt.Errorf("import graph edges: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	events.Emit("info", "graph.imported", "", map[string]interface{}{
		"graph": g.Name(),
		"nodes": len(nc.ids),
		"edges": len(ec.from),
	})
	return nil
}

type nodeRow struct {
	id   string
	x, y float64
}

type edgeRow struct {
	from, to string
}

// LoadGraph reads the graph stored under name and validates it.
func (s *Store) LoadGraph(ctx context.Context, name string) (*graph.Graph, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, x, y FROM graph_nodes
		WHERE graph_name = $1
		ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	var nodes []nodeRow
	for rows.Next() {
		var n nodeRow
		if err := rows.Scan(&n.id, &n.x, &n.y); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load graph %s: %w", name, err)
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("load graph %s: %w", name, ErrGraphNotFound)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT from_id, to_id FROM graph_edges
		WHERE graph_name = $1
		ORDER BY from_id, position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	defer rows.Close()
	var edges []edgeRow
	for rows.Next() {
		var e edgeRow
		if err := rows.Scan(&e.from, &e.to); err != nil {
			return nil, fmt.Errorf("load graph %s: %w", name, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}

	g, err := assemble(name, nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	events.Emit("info", "graph.loaded", "", map[string]interface{}{
		"graph":  name,
		"source": "postgres",
		"nodes":  g.Len(),
	})
	return g, nil
}

// assemble builds a validated graph from rows. Edges must already be in neighbor order.
func assemble(name string, nodes []nodeRow, edges []edgeRow) (*graph.Graph, error) {
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
	}

	doc := graph.Document{Version: 1, Name: name}
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, graph.Node{ID: n.id, X: n.x, Y: n.y, Neighbors: adj[n.id]})
		delete(adj, n.id)
	}
	if len(adj) > 0 {
		orphans := make([]string, 0, len(adj))
		for from := range adj {
			orphans = append(orphans, from)
		}
		sort.Strings(orphans)
		return nil, &graph.UnknownNodeError{ID: orphans[0]}
	}
	return doc.Build()
}

// ListGraphs returns every stored graph, by name.
func (s *Store) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.name, g.imported_at,
		       (SELECT count(*) FROM graph_nodes n WHERE n.graph_name = g.name),
		       (SELECT count(*) FROM graph_edges e WHERE e.graph_name = g.name)
		FROM graphs g
		ORDER BY g.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GraphInfo
	for rows.Next() {
		var gi GraphInfo
		if err := rows.Scan(&gi.Name, &gi.ImportedAt, &gi.Nodes, &gi.Edges); err != nil {
			return nil, err
		}
		out = append(out, gi)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
