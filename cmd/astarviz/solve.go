package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/astarviz/internal/search"
)

func newSolveCmd() *cobra.Command {
	var (
		graphSrc string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "solve START END",
		Short: "Run a search to completion and print the path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := resolveGraph(cmd.Context(), graphSrc)
			if err != nil {
				return err
			}
			res, err := search.Solve(g, args[0], args[1])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&graphSrc, "graph", "builtin", `graph to search: "builtin", "postgres:NAME" or a .json/.yaml file`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printResult(w io.Writer, res search.Result) {
	if !res.Found {
		fmt.Fprintln(w, "No path found!")
		fmt.Fprintf(w, "Steps: %d\n", res.Steps)
		return
	}
	fmt.Fprintf(w, "Path: %s\n", strings.Join(res.Path, " -> "))
	fmt.Fprintf(w, "Cost: %.2f\n", res.Cost)
	fmt.Fprintf(w, "Steps: %d\n", res.Steps)
	fmt.Fprintf(w, "Time: %.2fms\n", float64(res.Elapsed)/float64(time.Millisecond))
}
