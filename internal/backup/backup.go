// Package backup implements JSONL export and import for memory records, so
// a store's contents can be moved between machines or restored after loss.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Aman-CERP/hybridmem/internal/embed"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

// Record is the JSONL wire shape for one memory record. The vector is
// intentionally omitted: MemoryStore's List/Stats surface never returns
// vectors (to keep listing responses small), so an export is text and
// metadata only. Import re-embeds each record's text through the
// caller-supplied Embedder before writing it back.
type Record struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Category   store.Category `json:"category"`
	Scope      string         `json:"scope"`
	Importance float64        `json:"importance"`
	Timestamp  int64          `json:"timestamp"`
	Metadata   string         `json:"metadata"`
}

// Stats reports what Export or Import did.
type Stats struct {
	Total   int
	Skipped int
	Failed  int
}

// Export writes every record reachable under scopeFilter (nil/empty means
// all scopes) to w as JSON Lines, one record per line.
func Export(ctx context.Context, s store.MemoryStore, w io.Writer, scopeFilter []string) (Stats, error) {
	var stats Stats
	const pageSize = 500
	offset := 0
	encoder := json.NewEncoder(w)

	for {
		summaries, err := s.List(ctx, scopeFilter, "", offset, pageSize)
		if err != nil {
			return stats, fmt.Errorf("backup: list page at offset %d: %w", offset, err)
		}
		if len(summaries) == 0 {
			break
		}

		for _, summary := range summaries {
			rec := Record{
				ID:         summary.ID,
				Text:       summary.Text,
				Category:   summary.Category,
				Scope:      summary.Scope,
				Importance: summary.Importance,
				Timestamp:  summary.Timestamp,
				Metadata:   summary.Metadata,
			}
			if err := encoder.Encode(rec); err != nil {
				return stats, fmt.Errorf("backup: encode record %s: %w", summary.ID, err)
			}
			stats.Total++
		}

		if len(summaries) < pageSize {
			break
		}
		offset += pageSize
	}

	return stats, nil
}

// Import reads JSON Lines records from r, re-embeds each record's text
// through embedder, and writes the result into s via ImportEntry, which
// bypasses noise-filtering and duplicate-detection (those are write-path
// policies of the tool surface, not the store itself). Records whose id
// already exists are skipped, not overwritten. embedder may be nil, in
// which case imported records carry an empty vector and won't participate
// in vector search until re-embedded by some other means.
func Import(ctx context.Context, s store.MemoryStore, r io.Reader, embedder embed.Embedder) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Failed++
			continue
		}

		exists, err := s.HasID(ctx, rec.ID)
		if err != nil {
			stats.Failed++
			continue
		}
		if exists {
			stats.Skipped++
			continue
		}

		if rec.Category == "" {
			rec.Category = store.CategoryOther
		}
		if rec.Scope == "" {
			rec.Scope = store.DefaultScope
		}
		if rec.Metadata == "" {
			rec.Metadata = "{}"
		}
		rec.Importance = store.SanitizeImportance(rec.Importance)

		var vector []float32
		if embedder != nil {
			vector, err = embedder.EmbedPassage(ctx, rec.Text)
			if err != nil {
				stats.Failed++
				continue
			}
		}

		err = s.ImportEntry(ctx, store.MemoryRecord{
			ID:         rec.ID,
			Text:       rec.Text,
			Vector:     vector,
			Category:   rec.Category,
			Scope:      rec.Scope,
			Importance: rec.Importance,
			Timestamp:  rec.Timestamp,
			Metadata:   rec.Metadata,
		})
		if err != nil {
			stats.Failed++
			continue
		}
		stats.Total++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("backup: read jsonl: %w", err)
	}

	return stats, nil
}

// ExportToFile is a convenience wrapper around Export that writes to path,
// removing any partially-written file on failure.
func ExportToFile(ctx context.Context, s store.MemoryStore, path string, scopeFilter []string) (Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return Stats{}, fmt.Errorf("backup: create %s: %w", path, err)
	}
	defer f.Close()

	stats, err := Export(ctx, s, f, scopeFilter)
	if err != nil {
		_ = os.Remove(path)
		return stats, err
	}
	return stats, nil
}

// ImportFromFile is a convenience wrapper around Import that reads from path.
func ImportFromFile(ctx context.Context, s store.MemoryStore, path string, embedder embed.Embedder) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer f.Close()

	return Import(ctx, s, f, embedder)
}
