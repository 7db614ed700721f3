package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var scopeFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report total memory count plus per-scope and per-category breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, scopeFlag, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Restrict to this scope")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, scopeFlag string, jsonOutput bool) error {
	ctx := context.Background()
	a, err := buildApp(ctx, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	agentID := os.Getenv(agentIDEnv)
	var scopeFilter []string
	if scopeFlag != "" {
		if !a.scopes.IsAccessible(scopeFlag, agentID) {
			return fmt.Errorf("scope %q is not accessible", scopeFlag)
		}
		scopeFilter = []string{scopeFlag}
	} else {
		scopeFilter = a.scopes.GetAccessibleScopes(agentID)
	}

	stats, err := a.store.Stats(ctx, scopeFilter)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(w, "Total: %d\n", stats.Total)
	if len(stats.ByScope) > 0 {
		fmt.Fprintln(w, "By scope:")
		for scope, count := range stats.ByScope {
			fmt.Fprintf(w, "  %s: %d\n", scope, count)
		}
	}
	if len(stats.ByCategory) > 0 {
		fmt.Fprintln(w, "By category:")
		for category, count := range stats.ByCategory {
			fmt.Fprintf(w, "  %s: %d\n", category, count)
		}
	}
	return nil
}
