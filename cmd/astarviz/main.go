package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "astarviz",
		Short:         "Step-by-step A* search over a 2-D road network",
		Long:          "astarviz serves an interactive A* visualizer and solves shortest paths from the command line.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := opts.logLevel
			if level == "" {
				level = "warn"
			}
			format := opts.logFormat
			if format == "" {
				format = "text"
			}
			setLogger(newLogger(level, format, cmd.ErrOrStderr()))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to astarviz.yaml (defaults plus environment when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "json or text")

	root.AddCommand(newServeCmd(opts), newSolveCmd(), newGraphCmd())
	return root
}

// newLogger builds a leveled slog logger. Unknown levels fall back to info.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}

// setLogger installs l as the process logger and the event log mirror.
func setLogger(l *slog.Logger) {
	slog.SetDefault(l)
	events.SetLogger(l)
}
