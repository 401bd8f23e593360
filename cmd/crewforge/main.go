// Crewforge: AI Crew Builder Team MCP Server
//
// A multi-agent advisory team — product, architecture, UX, quality,
// and operations specialists plus a coordinator — that helps users
// define AI crew projects through conversation and turns the outcome
// into reviewable specification documents.
//
// Usage:
//
//	crewforge serve     # Start MCP server (stdio transport)
//	crewforge version   # Print version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/crewforge/crewforge/internal/config"
	crewserver "github.com/crewforge/crewforge/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crewforge",
		Short: "AI Crew Builder Team MCP server",
		Long: "Crewforge runs a multi-agent Builder Team that helps users define AI crew\n" +
			"projects through conversation, producing specification documents and\n" +
			"change proposals in a reviewable workspace.",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			// Logs go to stderr so they don't interfere with MCP's
			// stdio transport on stdout.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			})))

			s, cleanup, err := crewserver.New(cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			return server.ServeStdio(s)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crewforge v%s\n", crewserver.Version)
		},
	}
}
