// Package store provides vector storage (HNSW), BM25 index, and metadata
// persistence (SQLite) for memory records. This is the persistence layer
// backing the Memory Store component.
package store

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Category classifies the kind of fact a memory record holds.
type Category string

const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryDecision   Category = "decision"
	CategoryEntity     Category = "entity"
	CategoryOther      Category = "other"
)

// ValidCategory reports whether c is one of the declared categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryDecision, CategoryEntity, CategoryOther:
		return true
	default:
		return false
	}
}

// DefaultImportance is written when a caller does not supply one.
const DefaultImportance = 0.7

// DefaultScope is the scope name written when the caller supplies none.
const DefaultScope = "global"

// SanitizeImportance clamps v into [0, 1]. Non-finite values are replaced
// with DefaultImportance rather than persisted.
func SanitizeImportance(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultImportance
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MemoryRecord is the fundamental persisted entity: a piece of text with a
// dense vector, an access scope, and scoring metadata.
type MemoryRecord struct {
	// ID is a 128-bit opaque identifier, rendered as a hyphenated hex
	// string. Immutable after creation.
	ID string

	// Text is the non-empty, human-readable content.
	Text string

	// Vector has length equal to the store's configured dimension and
	// never changes length for the lifetime of the store.
	Vector []float32

	// Category is one of the declared Category values.
	Category Category

	// Scope is a non-empty access-boundary string (e.g. "global",
	// "project:foo", "agent:bar").
	Scope string

	// Importance is a real number in [0, 1]; DefaultImportance when unset.
	Importance float64

	// Timestamp is epoch milliseconds of creation; preserved across updates.
	Timestamp int64

	// Metadata is an opaque JSON-encoded string; "{}" by default.
	Metadata string
}

// MemoryRecordSummary is MemoryRecord without the vector, used by List to
// keep response payloads small.
type MemoryRecordSummary struct {
	ID         string
	Text       string
	Category   Category
	Scope      string
	Importance float64
	Timestamp  int64
	Metadata   string
}

// ScoredRecord pairs a MemoryRecord with a similarity score produced by
// vectorSearch or bm25Search.
type ScoredRecord struct {
	Record MemoryRecord
	Score  float64
}

// MemoryStoreStats reports record counts, optionally narrowed by a scope
// filter applied before counting.
type MemoryStoreStats struct {
	Total      int              `json:"total"`
	ByScope    map[string]int   `json:"by_scope"`
	ByCategory map[Category]int `json:"by_category"`
}

// MemoryStore persists memory records and exposes vector ANN search,
// lexical BM25 search, CRUD, filtered list, and stats. A single process
// owns the store; there is no cross-process coordination.
type MemoryStore interface {
	// store inserts a newly created record. Returns ErrDimensionMismatch
	// if record.Vector does not match the store's configured dimension.
	Store(ctx context.Context, record MemoryRecord) error

	// importEntry inserts a fully-formed record, bypassing noise-filtering
	// and duplicate-detection (those are write-path policies of the Tool
	// Surface's store operation, not the Store itself). Used by JSONL
	// import.
	ImportEntry(ctx context.Context, record MemoryRecord) error

	// hasId reports whether a record with the given exact id exists. Used
	// by import to skip already-present records.
	HasID(ctx context.Context, id string) (bool, error)

	// get resolves a full id or an unambiguous hex prefix of length >= 8 to
	// its complete record, vector included. scopeFilter, if non-empty, must
	// include the target record's scope. Returns the same errors as Delete
	// and Update for absent, ambiguous, or out-of-scope lookups.
	Get(ctx context.Context, idOrPrefix string, scopeFilter []string) (MemoryRecord, error)

	// vectorSearch runs ANN search over the vector column, converting
	// distance to score as score = 1 / (1 + distance). Over-fetches
	// internally to provide a stable candidate pool after scope filtering.
	VectorSearch(ctx context.Context, vector []float32, limit int, minScore float64, scopeFilter []string) ([]ScoredRecord, error)

	// bm25Search runs a full-text query. Raw BM25 scores are
	// sigmoid-normalized to [0,1]; zero or missing scores become 0.5.
	BM25Search(ctx context.Context, query string, limit int, scopeFilter []string) ([]ScoredRecord, error)

	// hasFtsSupport reports whether the underlying engine has a usable
	// full-text index. It is false once the store is closed, and then
	// bm25Search returns an error rather than an empty candidate list.
	HasFTSSupport() bool

	// delete accepts a full id or an unambiguous hex prefix of length >= 8.
	// scopeFilter, if non-empty, must include the target record's scope.
	Delete(ctx context.Context, idOrPrefix string, scopeFilter []string) error

	// update replaces text/vector/category/importance/metadata for the
	// record addressed by idOrPrefix, preserving id and timestamp.
	// Implemented as delete-then-insert so readers see either the old or
	// the new record, never a partial one.
	Update(ctx context.Context, idOrPrefix string, updated MemoryRecord, scopeFilter []string) error

	// list returns summaries matching scope and optional category, newest
	// first, after applying offset and limit.
	List(ctx context.Context, scopeFilter []string, category Category, offset, limit int) ([]MemoryRecordSummary, error)

	// stats returns total count plus per-scope and per-category counts.
	Stats(ctx context.Context, scopeFilter []string) (MemoryStoreStats, error)

	// bulkDelete requires at least one of scopeFilter or beforeTimestamp;
	// never allows an unconditional delete-all.
	BulkDelete(ctx context.Context, scopeFilter []string, beforeTimestamp int64) (int, error)

	// Close releases underlying engine resources.
	Close() error
}

// BM25Document is a single text document indexed for lexical search.
type BM25Document struct {
	ID      string // Record ID
	Content string
}

// BM25Result represents a single BM25 search hit.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats reports statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides lexical search using the BM25 ranking function.
type BM25Index interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*BM25Document) error

	// Search returns documents matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index.
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index. Both backends read only StopWords;
// K1, B and MinTokenLength are not passed to either index, and TokenizeText
// always drops tokens shorter than 2 characters.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English function words filtered out of
// the lexical index so BM25 ranks on content-bearing terms.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "is", "are", "was",
	"were", "be", "been", "being", "to", "of", "in", "on", "at", "for",
	"with", "about", "as", "by", "from", "this", "that", "it", "its",
	"i", "you", "he", "she", "we", "they", "them", "my", "your", "our",
}

// VectorResult represents a single vector search hit.
type VectorResult struct {
	ID       string  // Record ID
	Distance float32 // Lower is more similar
	Score    float32 // Normalized similarity, 1 / (1 + distance)
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension; fixed for the life of the store.
	Dimensions int

	// Quantization is the vector precision: "f32", "f16", "i8" (default: "f16")
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 32)
	M int

	// EfConstruction is HNSW build-time search width (default: 128)
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides approximate nearest-neighbor search over dense
// vectors using the HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector whose length does not match the
// store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// nowMillis returns the current time as epoch milliseconds, the
// MemoryRecord.Timestamp unit.
func nowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
