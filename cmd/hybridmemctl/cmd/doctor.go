package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/retriever"
)

// checkStatus classifies a single doctor check outcome.
type checkStatus string

const (
	statusPass checkStatus = "pass"
	statusWarn checkStatus = "warn"
	statusFail checkStatus = "fail"
)

// checkResult is one line of doctor output.
type checkResult struct {
	Name     string      `json:"name"`
	Status   checkStatus `json:"status"`
	Message  string      `json:"message"`
	Required bool        `json:"required"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that every retrieval stage is reachable",
		Long: `doctor opens the store and embedder with the current configuration and
probes each stage of the retrieval pipeline without mutating state:

  - configuration loads and validates
  - embedder answers a probe embed and reports its dimension
  - store answers a stats query
  - lexical (BM25) index is usable
  - cross-encoder reranker credential is present, if configured

Failures on required checks exit non-zero.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	ctx := context.Background()
	var results []checkResult

	a, err := buildApp(ctx, slog.Default())
	if err != nil {
		results = append(results, checkResult{
			Name: "startup", Status: statusFail, Message: err.Error(), Required: true,
		})
		return reportDoctor(cmd, results, jsonOutput)
	}
	defer func() { _ = a.Close() }()

	results = append(results, checkResult{
		Name: "config", Status: statusPass,
		Message:  fmt.Sprintf("loaded (provider=%s, mode=%s)", a.cfg.Embeddings.Provider, a.cfg.Retrieval.Mode),
		Required: true,
	})

	start := time.Now()
	if err := a.embedder.Test(ctx); err != nil {
		results = append(results, checkResult{
			Name: "embedder", Status: statusFail, Message: err.Error(), Required: true,
		})
	} else {
		results = append(results, checkResult{
			Name: "embedder", Status: statusPass,
			Message:  fmt.Sprintf("%s, %d dimensions, probe took %s", a.embedder.Model(), a.embedder.Dimensions(), time.Since(start).Round(time.Millisecond)),
			Required: true,
		})
	}

	if stats, err := a.store.Stats(ctx, nil); err != nil {
		results = append(results, checkResult{
			Name: "store", Status: statusFail, Message: err.Error(), Required: true,
		})
	} else {
		results = append(results, checkResult{
			Name: "store", Status: statusPass,
			Message:  fmt.Sprintf("%d records", stats.Total),
			Required: true,
		})
	}

	if a.store.HasFTSSupport() {
		results = append(results, checkResult{
			Name: "bm25", Status: statusPass, Message: "lexical index usable",
		})
	} else {
		results = append(results, checkResult{
			Name: "bm25", Status: statusWarn,
			Message: "lexical index unavailable; retrieval degrades to vector-only",
		})
	}

	if a.cfg.Retrieval.Rerank == string(retriever.RerankCrossEncoder) {
		if os.Getenv("VOYAGE_API_KEY") == "" {
			results = append(results, checkResult{
				Name: "reranker", Status: statusWarn,
				Message: "cross-encoder rerank configured but VOYAGE_API_KEY is unset; falling back to lightweight rerank",
			})
		} else {
			results = append(results, checkResult{
				Name: "reranker", Status: statusPass, Message: "credential present",
			})
		}
	}

	return reportDoctor(cmd, results, jsonOutput)
}

func reportDoctor(cmd *cobra.Command, results []checkResult, jsonOutput bool) error {
	w := cmd.OutOrStdout()

	failed := false
	for _, r := range results {
		if r.Status == statusFail && r.Required {
			failed = true
		}
	}

	if jsonOutput {
		status := "ok"
		if failed {
			status = "fail"
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Status string        `json:"status"`
			Checks []checkResult `json:"checks"`
		}{Status: status, Checks: results}); err != nil {
			return err
		}
	} else {
		marks := map[checkStatus]string{statusPass: "ok", statusWarn: "warn", statusFail: "FAIL"}
		for _, r := range results {
			fmt.Fprintf(w, "%-10s [%s] %s\n", r.Name, marks[r.Status], r.Message)
		}
	}

	if failed {
		return fmt.Errorf("doctor: one or more required checks failed")
	}
	return nil
}
