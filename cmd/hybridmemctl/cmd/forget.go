package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/retriever"
)

const (
	forgetCandidateLimit  = 5
	forgetAutoDeleteScore = 0.9
)

func newForgetCmd() *cobra.Command {
	var memoryID string
	var scopeFlag string

	cmd := &cobra.Command{
		Use:   "forget [query]",
		Short: "Remove a memory by id or by describing it",
		Long: `forget deletes a memory addressed by --id, or retrieves
candidates for a free-text query: a single confident match (score > 0.9)
is deleted immediately, otherwise candidates are printed for a follow-up
call with --id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd, strings.Join(args, " "), memoryID, scopeFlag)
		},
	}

	cmd.Flags().StringVar(&memoryID, "id", "", "Memory id or unambiguous id prefix (>= 8 hex chars) to delete")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Restrict to this scope")

	return cmd
}

func runForget(cmd *cobra.Command, query, memoryID, scopeFlag string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w := cmd.OutOrStdout()
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

	if memoryID != "" {
		if err := a.store.Delete(ctx, memoryID, scopeFilter); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Fprintf(w, "deleted %s\n", memoryID)
		return nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("forget requires either --id or a query")
	}

	results, err := a.engine.Retrieve(ctx, retriever.Query{
		Text:        query,
		Limit:       forgetCandidateLimit,
		ScopeFilter: scopeFilter,
	})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	if len(results) == 1 && results[0].Score > forgetAutoDeleteScore {
		id := results[0].Record.ID
		if err := a.store.Delete(ctx, id, scopeFilter); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Fprintf(w, "deleted %s\n", id)
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintf(w, "no memory matches %q\n", query)
		return nil
	}

	fmt.Fprintln(w, "no single confident match; candidates:")
	for i, r := range results {
		fmt.Fprintf(w, "  %d. [%.3f] %s (id: %s)\n", i+1, r.Score, r.Record.Text, r.Record.ID)
	}
	fmt.Fprintln(w, "re-run with --id to delete one of the above")
	return nil
}
