package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "flightcheck/internal/mcp"
	"flightcheck/internal/store"
)

var serveFlags struct {
	dbPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing list_runs, get_run and
get_failures backed by the run ledger. The server exits when its parent
process goes away.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", defaultDBPath(), "Run ledger path")
}

func runServe(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(serveFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mcpserver.WatchParent(ctx, cancel)

	return mcpserver.NewServer(st, version).Run(ctx)
}
