// Package retriever orchestrates the hybrid retrieval pipeline: embed the
// query, search the vector and lexical indices in parallel, fuse their
// results, rerank, post-process, and diversify.
package retriever

import (
	"context"
	"time"

	"github.com/Aman-CERP/hybridmem/internal/store"
)

// Mode selects between a hybrid (vector + lexical) and vector-only search
// strategy.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeVector Mode = "vector"
)

// RerankMode selects the reranking strategy applied after fusion.
type RerankMode string

const (
	RerankCrossEncoder RerankMode = "cross-encoder"
	RerankLightweight  RerankMode = "lightweight"
	RerankNone         RerankMode = "none"
)

// Config holds the tunable knobs of the retrieval pipeline.
type Config struct {
	Mode Mode

	VectorWeight float64
	BM25Weight   float64

	MinScore     float64
	HardMinScore float64

	Rerank      RerankMode
	RerankModel string

	CandidatePoolSize int

	RecencyHalfLifeDays float64
	RecencyWeight       float64

	LengthNormAnchor int

	TimeDecayHalfLifeDays float64

	FilterNoise bool
}

// DefaultConfig returns the pipeline's opinionated defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeHybrid,
		VectorWeight:          0.65,
		BM25Weight:            0.35,
		MinScore:              0.15,
		HardMinScore:          0.05,
		Rerank:                RerankLightweight,
		RerankModel:           "rerank-2",
		CandidatePoolSize:     40,
		RecencyHalfLifeDays:   14,
		RecencyWeight:         0.1,
		LengthNormAnchor:      400,
		TimeDecayHalfLifeDays: 180,
		FilterNoise:           true,
	}
}

// Query describes a single retrieval request.
type Query struct {
	// Text is the natural-language search query.
	Text string

	// Limit bounds the number of returned results, clamped to [1, 20].
	Limit int

	// ScopeFilter restricts candidates to these scopes; empty means no
	// restriction (the caller, typically the tool surface, is
	// responsible for translating an agent identity into this list via
	// the scope manager).
	ScopeFilter []string

	// Category, if non-nil, restricts candidates to a single category.
	// The retrieval pipeline does not filter by category itself (the
	// underlying store has no category-filtered search); this field is
	// reserved for callers that post-filter Results.
	Category *store.Category
}

// ClampedLimit returns q.Limit clamped to the retrieval pipeline's
// allowed range of [1, 20].
func (q Query) ClampedLimit() int {
	switch {
	case q.Limit < 1:
		return 1
	case q.Limit > 20:
		return 20
	default:
		return q.Limit
	}
}

// Result is a single ranked candidate with per-source scoring provenance
// retained for explainability.
type Result struct {
	Record store.MemoryRecord

	Score float64

	VectorScore float64
	BM25Score   float64
	InVector    bool
	InBM25      bool

	Reranked bool

	MatchedTerms []string
}

// Retriever exposes the hot-path retrieval operation plus config
// introspection and a connectivity probe.
type Retriever interface {
	// Retrieve runs the full pipeline and returns ranked results. The
	// adaptive gate is not applied here; callers decide whether to call
	// Retrieve at all.
	Retrieve(ctx context.Context, q Query) ([]Result, error)

	// UpdateConfig replaces the pipeline's configuration.
	UpdateConfig(cfg Config)

	// GetConfig returns the pipeline's current configuration.
	GetConfig() Config

	// Test verifies the embedder and store are reachable.
	Test(ctx context.Context) error
}

// clamp01 bounds x to [0, 1].
func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// clampFloor bounds new to [old*floorRatio, 1], preventing a
// post-processing stage from collapsing a candidate's score to zero.
func clampFloor(newScore, old, floorRatio float64) float64 {
	floor := old * floorRatio
	if newScore < floor {
		newScore = floor
	}
	return clamp01(newScore)
}

func ageDays(timestamp int64, now time.Time) float64 {
	if timestamp <= 0 {
		return 0
	}
	t := time.UnixMilli(timestamp)
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return d.Hours() / 24
}
