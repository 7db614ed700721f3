// Package cmd provides the CLI commands for hybridmemctl.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/logging"
)

const version = "0.1.0"

// Debug logging flag, set by the persistent --debug flag and consulted by
// every subcommand's setup helper.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for hybridmemctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hybridmemctl",
		Short:   "Local hybrid memory core for conversational agents",
		Version: version,
		Long: `hybridmemctl drives the hybrid memory core directly: store and
recall memories, inspect stats, and run the MCP server over stdio.

Run 'hybridmemctl serve' to expose the recall/store/forget/update/stats/list
tools to an MCP client. The other subcommands open the store directly and
are meant for local smoke-testing, not production use.`,
	}

	cmd.SetVersionTemplate("hybridmemctl version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the default log directory")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRecallCmd())
	cmd.AddCommand(newStoreCmd())
	cmd.AddCommand(newForgetCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" {
		// serve sets up MCP-safe logging itself; stdout must stay clean.
		return nil
	}
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false
	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	return nil
}
