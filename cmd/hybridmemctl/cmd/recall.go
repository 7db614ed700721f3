package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/retriever"
)

func newRecallCmd() *cobra.Command {
	var limit int
	var scopeFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Search stored memories for a natural-language query",
		Long: `recall opens the store directly and runs the same hybrid retrieval
pipeline the "recall" MCP tool exposes. It is meant for local
smoke-testing, not production use.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecall(cmd, strings.Join(args, " "), limit, scopeFlag, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Restrict results to this scope")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runRecall(cmd *cobra.Command, query string, limit int, scopeFlag string, jsonOutput bool) error {
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

	results, err := a.engine.Retrieve(ctx, retriever.Query{
		Text:        query,
		Limit:       limit,
		ScopeFilter: scopeFilter,
	})
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintf(w, "No memories found for %q\n", query)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.3f] %s (%s, %s)\n", i+1, r.Score, r.Record.Text, r.Record.Category, r.Record.Scope)
	}
	return nil
}
