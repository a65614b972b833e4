package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/AaronLay10/astarviz/internal/config"
	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/storage/postgres"
)

const postgresPrefix = "postgres:"

// graphLoader reads named graphs from a store. *postgres.Store implements it.
type graphLoader interface {
	LoadGraph(ctx context.Context, name string) (*graph.Graph, error)
}

// resolveGraph loads a graph from a --graph value: "builtin", "postgres:NAME", or a file path.
func resolveGraph(ctx context.Context, src string) (*graph.Graph, error) {
	switch {
	case src == "" || src == config.SourceBuiltin:
		return builtinGraph(), nil
	case strings.HasPrefix(src, postgresPrefix):
		name := strings.TrimPrefix(src, postgresPrefix)
		if name == "" {
			return nil, fmt.Errorf("graph %q: missing graph name", src)
		}
		store, err := postgres.New(ctx)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadGraph(ctx, name)
	default:
		return fileGraph(src)
	}
}

// loadConfiguredGraph loads the graph named by the service configuration.
func loadConfiguredGraph(ctx context.Context, cfg *config.Config, store graphLoader) (*graph.Graph, error) {
	switch cfg.Graph.Source {
	case config.SourceFile:
		return fileGraph(cfg.Graph.Path)
	case config.SourcePostgres:
		if store == nil {
			return nil, fmt.Errorf("graph.source %q requires a postgres connection", config.SourcePostgres)
		}
		return store.LoadGraph(ctx, cfg.Graph.Name)
	default:
		return builtinGraph(), nil
	}
}

func builtinGraph() *graph.Graph {
	g := graph.RoadNetwork()
	events.Emit("info", "graph.loaded", "", map[string]interface{}{
		"graph":  g.Name(),
		"source": config.SourceBuiltin,
		"nodes":  g.Len(),
	})
	return g
}

func fileGraph(path string) (*graph.Graph, error) {
	g, err := graph.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	events.Emit("info", "graph.loaded", "", map[string]interface{}{
		"graph":  g.Name(),
		"source": config.SourceFile,
		"path":   path,
		"nodes":  g.Len(),
	})
	return g, nil
}
