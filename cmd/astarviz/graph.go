package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/storage/postgres"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect, validate and import graphs",
	}
	cmd.AddCommand(newGraphShowCmd(), newGraphValidateCmd(), newGraphImportCmd(), newGraphListCmd())
	return cmd
}

func newGraphShowCmd() *cobra.Command {
	var (
		graphSrc string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a graph's nodes and adjacency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := resolveGraph(cmd.Context(), graphSrc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g.Document())
			case "yaml":
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(g.Document())
			case "table":
				return printGraph(out, g)
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	cmd.Flags().StringVar(&graphSrc, "graph", "builtin", `graph to show: "builtin", "postgres:NAME" or a .json/.yaml file`)
	cmd.Flags().StringVarP(&format, "output", "o", "table", "table, json or yaml")
	return cmd
}

func printGraph(w io.Writer, g *graph.Graph) error {
	bounds := g.Bounds()
	fmt.Fprintf(w, "Graph: %s (%d nodes, bounds %.0fx%.0f)\n\n", g.Name(), g.Len(), bounds.X, bounds.Y)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tX\tY\tNEIGHBORS")
	for _, n := range g.Nodes() {
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%s\n", n.ID, n.X, n.Y, strings.Join(n.Neighbors, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if asym := g.AsymmetricEdges(); len(asym) > 0 {
		fmt.Fprintln(w, "\nOne-way edges:")
		for _, e := range asym {
			fmt.Fprintf(w, "  %s -> %s\n", e.From, e.To)
		}
	}
	return nil
}

func newGraphValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check graph documents for unknown versions, bad ids, non-finite positions and dangling neighbors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				g, err := graph.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s: %s (%d nodes)\n", path, g.Name(), g.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d graphs invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newGraphImportCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a graph document in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				doc := g.Document()
				doc.Name = name
				if g, err = doc.Build(); err != nil {
					return err
				}
			}

			store, err := postgres.New(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ImportGraph(cmd.Context(), g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d nodes)\n", g.Name(), g.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the document name")
	return cmd
}

func newGraphListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List graphs stored in Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := postgres.New(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.ListGraphs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tNODES\tEDGES\tIMPORTED")
			for _, gi := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", gi.Name, gi.Nodes, gi.Edges, gi.ImportedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}
