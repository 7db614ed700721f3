package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/hybridmem/internal/embed"
	amerrors "github.com/Aman-CERP/hybridmem/internal/errors"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

// rerankBlendWeight is how much a cross-encoder (or fallback) rerank
// score contributes to the blended score, the remainder coming from the
// pre-rerank fused score.
const rerankBlendWeight = 0.6

// rerankFloorRatio bounds how far reranking may drag a candidate's score
// down relative to its pre-rerank fused score.
const rerankFloorRatio = 0.5

// nonRerankedDecay is applied to candidates sent to the store's fused
// list but not returned by the reranker response (e.g. truncated by the
// provider), so they don't outrank the reranked ones by accident.
const nonRerankedDecay = 0.8

// lightweightBlendWeight is the fused-score share of the lightweight
// (cosine similarity) rerank fallback's blended score.
const lightweightBlendWeight = 0.3

// Engine implements Retriever: it embeds the query, searches the vector
// and lexical indices in parallel, fuses candidates, reranks, applies
// the post-processing stages, and diversifies the result.
type Engine struct {
	store    store.MemoryStore
	embedder embed.Embedder
	reranker Reranker

	// breaker stops the pipeline from paying the cross-encoder timeout
	// on every query while the rerank endpoint is down; an open circuit
	// drops straight into the lightweight fallback.
	breaker *amerrors.CircuitBreaker

	mu  sync.RWMutex
	cfg Config

	logger *slog.Logger
}

// NewEngine constructs a retriever backed by s and embedder. reranker
// may be nil or a *NoOpReranker, in which case the cross-encoder stage is
// skipped: RerankCrossEncoder and RerankLightweight both use the
// lightweight cosine rerank, and RerankNone skips reranking.
func NewEngine(s store.MemoryStore, embedder embed.Embedder, reranker Reranker, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if reranker == nil {
		reranker = &NoOpReranker{}
	}
	return &Engine{
		store:    s,
		embedder: embedder,
		reranker: reranker,
		breaker:  amerrors.NewCircuitBreaker("reranker"),
		cfg:      cfg,
		logger:   logger,
	}
}

func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Test verifies the embedder and store are reachable.
func (e *Engine) Test(ctx context.Context) error {
	if err := e.embedder.Test(ctx); err != nil {
		return fmt.Errorf("embedder unreachable: %w", err)
	}
	if _, err := e.store.Stats(ctx, nil); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// Retrieve runs the full pipeline described by the package doc comment
// and returns ranked results. It is a pure function of its inputs given
// a fixed config, store contents, and embedder behavior.
func (e *Engine) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	cfg := e.GetConfig()
	limit := q.ClampedLimit()

	queryVector, err := e.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	poolSize := cfg.CandidatePoolSize
	if 2*limit > poolSize {
		poolSize = 2 * limit
	}

	useHybrid := cfg.Mode == ModeHybrid && e.store.HasFTSSupport()

	vecResults, bm25Results, err := e.dualSearch(ctx, queryVector, q.Text, poolSize, q.ScopeFilter, useHybrid)
	if err != nil {
		return nil, err
	}

	fused := fuse(vecResults, bm25Results)
	fused = filterMinScore(fused, cfg.MinScore)

	fused = e.rerank(ctx, q.Text, fused, queryVector, limit, cfg)

	now := time.Now()
	fused = postProcess(fused, cfg, now)

	fused = filterHardMin(fused, cfg.HardMinScore)

	if cfg.FilterNoise {
		fused = filterNoiseResults(fused)
	}

	return diversify(fused, limit), nil
}

// dualSearch runs the vector search unconditionally and, in hybrid mode,
// the BM25 search concurrently, awaiting both. A BM25 failure is logged
// and treated as an empty result set, degrading gracefully to
// vector-only; a vector search failure is fatal and propagates.
func (e *Engine) dualSearch(ctx context.Context, queryVector []float32, queryText string, poolSize int, scopeFilter []string, useHybrid bool) ([]store.ScoredRecord, []store.ScoredRecord, error) {
	var vecResults, bm25Results []store.ScoredRecord

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := e.store.VectorSearch(gctx, queryVector, poolSize, 0, scopeFilter)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vecResults = results
		return nil
	})

	if useHybrid {
		g.Go(func() error {
			results, err := e.store.BM25Search(gctx, queryText, poolSize, scopeFilter)
			if err != nil {
				e.logger.Warn("bm25 search degraded to empty", "error", err)
				return nil
			}
			bm25Results = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vecResults, bm25Results, nil
}

// rerank applies the configured rerank strategy to the top 2*limit
// fused candidates, blending the reranker's relevance score with the
// pre-rerank fused score and decaying candidates the reranker didn't
// return. When the cross-encoder is not configured, has no real reranker,
// is unavailable, is held off by an open breaker, or fails, the
// candidates get the lightweight cosine rerank instead, which makes no
// remote call and cannot fail.
func (e *Engine) rerank(ctx context.Context, query string, fused []Result, queryVector []float32, limit int, cfg Config) []Result {
	if cfg.Rerank == RerankNone || len(fused) == 0 {
		return fused
	}

	topN := 2 * limit
	if topN > len(fused) {
		topN = len(fused)
	}
	candidates := fused[:topN]

	_, noReranker := e.reranker.(*NoOpReranker)
	if cfg.Rerank == RerankCrossEncoder && !noReranker && e.breaker.Allow() && e.reranker.Available(ctx) {
		rerankCtx, cancel := context.WithTimeout(ctx, rerankTimeout)
		defer cancel()

		docs := make([]string, len(candidates))
		for i, c := range candidates {
			docs[i] = c.Record.Text
		}

		reranked, err := e.reranker.Rerank(rerankCtx, query, docs, topN)
		if err == nil && len(reranked) > 0 {
			e.breaker.RecordSuccess()
			return blendRerank(fused, candidates, reranked)
		}
		e.breaker.RecordFailure()
		e.logger.Warn("cross-encoder rerank failed, falling back", "error", err, "breaker_state", e.breaker.State().String())
	}

	return lightweightRerank(fused, candidates, queryVector)
}

// blendRerank merges cross-encoder scores into the fused list: a
// candidate the reranker scored gets blended = clamp(0.6*rerank +
// 0.4*fused, floor=0.5*fused); a candidate sent but not returned is
// decayed instead.
func blendRerank(fused, candidates []Result, reranked []RerankResult) []Result {
	returned := make(map[int]float64, len(reranked))
	for _, r := range reranked {
		returned[r.Index] = r.Score
	}

	byID := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		if score, ok := returned[i]; ok {
			blended := clampFloor(rerankBlendWeight*score+(1-rerankBlendWeight)*c.Score, c.Score, rerankFloorRatio)
			byID[c.Record.ID] = blended
		} else {
			byID[c.Record.ID] = c.Score * nonRerankedDecay
		}
	}

	out := make([]Result, len(fused))
	copy(out, fused)
	for i := range out {
		if score, ok := byID[out[i].Record.ID]; ok {
			out[i].Score = score
			out[i].Reranked = true
		}
	}
	resortDescending(out)
	return out
}

// lightweightRerank blends each candidate's fused score with the cosine
// similarity between the query vector and the candidate's own vector,
// used when the cross-encoder is disabled, unavailable, or failed.
func lightweightRerank(fused, candidates []Result, queryVector []float32) []Result {
	byID := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		sim := cosineSim(queryVector, c.Record.Vector)
		byID[c.Record.ID] = clamp01((1-lightweightBlendWeight)*c.Score + lightweightBlendWeight*sim)
	}

	out := make([]Result, len(fused))
	copy(out, fused)
	for i := range out {
		if score, ok := byID[out[i].Record.ID]; ok {
			out[i].Score = score
			out[i].Reranked = true
		}
	}
	resortDescending(out)
	return out
}

func filterHardMin(results []Result, hardMinScore float64) []Result {
	return filterMinScore(results, hardMinScore)
}

func filterNoiseResults(results []Result) []Result {
	kept := results[:0:0]
	for _, r := range results {
		if !IsNoise(r.Record.Text, DefaultNoiseFilterConfig()) {
			kept = append(kept, r)
		}
	}
	return kept
}

var _ Retriever = (*Engine)(nil)
