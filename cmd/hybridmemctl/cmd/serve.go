package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/logging"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server, exposing recall/store/forget/update/stats/list",
		Long: `serve starts the MCP server and blocks until the client
disconnects or the process receives a shutdown signal.

Over the stdio transport, stdout is reserved exclusively for JSON-RPC
traffic; all logging goes to the default log file instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve on (stdio)")

	return cmd
}

func runServe(cmd *cobra.Command, transport string) error {
	level := "info"
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()

	ctx := cmd.Context()
	a, err := buildApp(ctx, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if transport == "" {
		transport = a.cfg.Server.Transport
	}
	return a.server.Serve(ctx, transport)
}
