package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a graph.
type Document struct {
	Version int    `json:"version" yaml:"version"`
	Name    string `json:"name" yaml:"name"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
}

// Load reads a graph document from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	}

	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc.Build()
}

// Build turns a decoded document into a validated graph.
func (d *Document) Build() (*Graph, error) {
	if d.Version != 1 {
		return nil, fmt.Errorf("unsupported graph version: %d", d.Version)
	}
	g, err := FromNodes(d.Name, d.Nodes)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Document returns the serializable form of g.
func (g *Graph) Document() *Document {
	return &Document{Version: 1, Name: g.name, Nodes: g.Nodes()}
}
