package mcp

import (
	"fmt"
	"strings"
)

// FormatRecallResults renders recall results as markdown, showing each
// result's scoring provenance so a caller can judge why it surfaced.
func FormatRecallResults(query string, results []RecallResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No memories found for %q", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recall Results for %q\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(results)))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatRecallResult(&sb, i+1, r)
	}

	return sb.String()
}

func formatRecallResult(sb *strings.Builder, rank int, r RecallResult) {
	sb.WriteString(fmt.Sprintf("%d. **%s** _(%s, score %.3f)_\n", rank, r.Text, r.Category, r.Score))
	sb.WriteString(fmt.Sprintf("   scope: %s · importance: %.2f · id: %s\n", r.Scope, r.Importance, r.ID))

	var sources []string
	if r.Sources.Vector != nil {
		sources = append(sources, fmt.Sprintf("vector %.3f", *r.Sources.Vector))
	}
	if r.Sources.BM25 != nil {
		sources = append(sources, fmt.Sprintf("bm25 %.3f", *r.Sources.BM25))
	}
	if r.Sources.Reranked {
		sources = append(sources, "reranked")
	}
	if len(sources) > 0 {
		sb.WriteString(fmt.Sprintf("   sources: %s\n", strings.Join(sources, ", ")))
	}
	if len(r.Sources.MatchedTerms) > 0 {
		sb.WriteString(fmt.Sprintf("   matched terms: %s\n", strings.Join(r.Sources.MatchedTerms, ", ")))
	}
	sb.WriteString("\n")
}
