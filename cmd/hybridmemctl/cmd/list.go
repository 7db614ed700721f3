package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/store"
)

func newListCmd() *cobra.Command {
	var limit, offset int
	var scopeFlag, category string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, limit, offset, scopeFlag, category, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of records to skip")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Restrict to this scope")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to this category")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runList(cmd *cobra.Command, limit, offset int, scopeFlag, category string, jsonOutput bool) error {
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

	summaries, err := a.store.List(ctx, scopeFilter, store.Category(category), offset, limit)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(w, "no memories found")
		return nil
	}
	for _, r := range summaries {
		fmt.Fprintf(w, "%s  [%s/%s, importance %.2f]  %s\n", r.ID, r.Scope, r.Category, r.Importance, r.Text)
	}
	return nil
}
