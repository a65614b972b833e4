package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AaronLay10/astarviz/internal/config"
	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/search"
)

const diamondPath = "../../graphs/diamond.v1.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		l := newLogger(in, "text", &bytes.Buffer{})
		if !l.Enabled(ctx, want) {
			t.Errorf("%s: level %v should be enabled", in, want)
		}
		if want > slog.LevelDebug && l.Enabled(ctx, want-4) {
			t.Errorf("%s: level below %v should be disabled", in, want)
		}
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger("info", "json", &buf).Info("hello", "k", "v")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestResolveGraph(t *testing.T) {
	ctx := context.Background()

	g, err := resolveGraph(ctx, "")
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if g.Name() != "road-network" || g.Len() != 26 {
		t.Errorf("builtin: got %s with %d nodes", g.Name(), g.Len())
	}

	g, err = resolveGraph(ctx, diamondPath)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if g.Name() != "diamond" || g.Len() != 4 {
		t.Errorf("file: got %s with %d nodes", g.Name(), g.Len())
	}

	if _, err := resolveGraph(ctx, "does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := resolveGraph(ctx, "postgres:"); err == nil {
		t.Error("expected error for postgres spec without a name")
	}
}

type stubLoader struct {
	name string
}

func (s *stubLoader) LoadGraph(ctx context.Context, name string) (*graph.Graph, error) {
	s.name = name
	return graph.FromNodes(name, []graph.Node{{ID: "only", X: 1, Y: 1}})
}

func TestLoadConfiguredGraph(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	g, err := loadConfiguredGraph(ctx, cfg, nil)
	if err != nil || g.Name() != "road-network" {
		t.Fatalf("builtin source: %v, %v", g, err)
	}

	cfg.Graph.Source = config.SourceFile
	cfg.Graph.Path = diamondPath
	if g, err = loadConfiguredGraph(ctx, cfg, nil); err != nil || g.Name() != "diamond" {
		t.Fatalf("file source: %v, %v", g, err)
	}

	cfg.Graph.Source = config.SourcePostgres
	cfg.Graph.Name = "city"
	if _, err := loadConfiguredGraph(ctx, cfg, nil); err == nil {
		t.Fatal("postgres source without a store should fail")
	}

	stub := &stubLoader{}
	if g, err = loadConfiguredGraph(ctx, cfg, stub); err != nil {
		t.Fatalf("postgres source: %v", err)
	}
	if stub.name != "city" || g.Name() != "city" {
		t.Errorf("expected graph %q to be loaded, got %q", "city", stub.name)
	}
}

func TestSolveCommand(t *testing.T) {
	out, err := execute(t, "solve", "--graph", diamondPath, "top", "bottom")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !strings.Contains(out, "Cost: 282.84") {
		t.Errorf("expected cost in output:\n%s", out)
	}
	if !strings.HasPrefix(out, "Path: top -> ") || !strings.Contains(out, " -> bottom\n") {
		t.Errorf("unexpected path line:\n%s", out)
	}
}

func TestSolveCommandJSON(t *testing.T) {
	out, err := execute(t, "solve", "--graph", diamondPath, "--json", "left", "right")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	var res search.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !res.Found || len(res.Path) != 3 || res.Path[0] != "left" || res.Path[2] != "right" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSolveCommandNoPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "islands.yaml")
	doc := "version: 1\nnodes:\n  - {id: a, x: 0, y: 0}\n  - {id: b, x: 10, y: 0}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "solve", "--graph", path, "a", "b")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !strings.HasPrefix(out, "No path found!") {
		t.Errorf("expected no path message, got:\n%s", out)
	}
}

func TestSolveCommandUnknownNode(t *testing.T) {
	_, err := execute(t, "solve", "--graph", diamondPath, "top", "nowhere")
	var invalid *search.InvalidEndpointsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidEndpointsError, got %v", err)
	}
}

func TestGraphValidateCommand(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version": 2, "nodes": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "graph", "validate", diamondPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasPrefix(out, "ok ") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = execute(t, "graph", "validate", diamondPath, bad)
	if err == nil {
		t.Fatal("expected failure when one document is invalid")
	}
	if !strings.Contains(out, "FAIL "+bad) || !strings.Contains(out, "unsupported graph version") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestGraphShowCommand(t *testing.T) {
	out, err := execute(t, "graph", "show", "--graph", diamondPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.HasPrefix(out, "Graph: diamond (4 nodes") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if strings.Contains(out, "One-way edges") {
		t.Errorf("diamond has no one-way edges:\n%s", out)
	}

	out, err = execute(t, "graph", "show", "--graph", diamondPath, "-o", "json")
	if err != nil {
		t.Fatalf("show json: %v", err)
	}
	var doc graph.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Version != 1 || len(doc.Nodes) != 4 {
		t.Errorf("unexpected document: %+v", doc)
	}

	if _, err := execute(t, "graph", "show", "-o", "xml"); err == nil {
		t.Error("expected error for unknown output format")
	}
}
