package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/retriever"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

const storeDuplicateScore = 0.98
const storeDuplicateSearchScore = 0.1

func newStoreCmd() *cobra.Command {
	var importance float64
	var category string
	var scopeFlag string

	cmd := &cobra.Command{
		Use:   "store <text>",
		Short: "Remember a piece of text for later recall",
		Long: `store opens the store directly and applies the same
noise-filter/embed/dedup/persist path the "store" MCP tool exposes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, strings.Join(args, " "), importance, category, scopeFlag)
		},
	}

	cmd.Flags().Float64Var(&importance, "importance", store.DefaultImportance, "Importance in [0, 1]")
	cmd.Flags().StringVar(&category, "category", string(store.CategoryOther), "preference|fact|decision|entity|other")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Scope to store in (defaults to the agent's default scope)")

	return cmd
}

func runStore(cmd *cobra.Command, text string, importance float64, category, scopeFlag string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w := cmd.OutOrStdout()
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("text must not be empty")
	}
	if retriever.IsNoise(text, retriever.DefaultNoiseFilterConfig()) {
		fmt.Fprintln(w, "not stored: text classified as low-value filler")
		return nil
	}

	agentID := os.Getenv(agentIDEnv)
	scopeName := scopeFlag
	if scopeName == "" {
		scopeName = a.scopes.GetDefaultScope(agentID)
	} else if !a.scopes.IsAccessible(scopeName, agentID) {
		return fmt.Errorf("scope %q is not accessible", scopeName)
	}

	cat := store.Category(category)
	if cat == "" {
		cat = store.CategoryOther
	}
	if !store.ValidCategory(cat) {
		return fmt.Errorf("unknown category %q", category)
	}

	vector, err := a.embedder.EmbedPassage(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	dupes, err := a.store.VectorSearch(ctx, vector, 1, storeDuplicateSearchScore, []string{scopeName})
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	for _, d := range dupes {
		if d.Score > storeDuplicateScore {
			fmt.Fprintf(w, "not stored: duplicate of existing memory %s\n", d.Record.ID)
			return nil
		}
	}

	record := store.MemoryRecord{
		ID:         store.NewRecordID(),
		Text:       text,
		Vector:     vector,
		Category:   cat,
		Scope:      scopeName,
		Importance: importance,
		Timestamp:  time.Now().UnixMilli(),
		Metadata:   "{}",
	}
	if err := a.store.Store(ctx, record); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	fmt.Fprintf(w, "stored %s\n", record.ID)
	return nil
}
