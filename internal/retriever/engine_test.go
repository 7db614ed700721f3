package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hybridmem/internal/embed"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

// engineTestDims matches the static embedder's fixed output length; the
// store would reject the embedder's vectors at any other dimension.
const engineTestDims = embed.StaticDimensions

func newTestEngine(t *testing.T, cfg Config) (*Engine, store.MemoryStore, embed.Embedder) {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenMemoryStore(store.MemoryStoreConfig{
		DataDir:      t.TempDir(),
		VectorConfig: store.DefaultVectorStoreConfig(engineTestDims),
		BM25Config:   store.DefaultBM25Config(),
		BM25Backend:  "sqlite",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderConfig{Provider: embed.ProviderStatic, Dimensions: engineTestDims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = embedder.Close() })

	eng := NewEngine(s, embedder, nil, cfg, nil)
	return eng, s, embedder
}

func storeText(t *testing.T, ctx context.Context, s store.MemoryStore, embedder embed.Embedder, text, scope string, importance float64) store.MemoryRecord {
	t.Helper()
	vec, err := embedder.EmbedPassage(ctx, text)
	require.NoError(t, err)
	if scope == "" {
		scope = store.DefaultScope
	}
	if importance == 0 {
		importance = store.DefaultImportance
	}
	rec := store.MemoryRecord{
		ID:         store.NewRecordID(),
		Text:       text,
		Vector:     vec,
		Category:   store.CategoryOther,
		Scope:      scope,
		Importance: importance,
		Metadata:   "{}",
	}
	require.NoError(t, s.Store(ctx, rec))
	return rec
}

func TestEngine_Retrieve_FindsRelevantMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rerank = RerankNone
	cfg.MinScore = 0
	cfg.HardMinScore = 0
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()

	dark := storeText(t, ctx, s, embedder, "user prefers dark mode over light mode for the editor", "", 0.9)
	storeText(t, ctx, s, embedder, "user lives in berlin germany", "", 0.7)
	storeText(t, ctx, s, embedder, "weather is nice today outside", "", 0.3)

	results, err := eng.Retrieve(ctx, Query{Text: "dark mode preference for editor", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, dark.ID, results[0].Record.ID)
}

func TestEngine_Retrieve_ClampsLimitTo20(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rerank = RerankNone
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		storeText(t, ctx, s, embedder, "distinct memorable fact number "+string(rune('a'+i)), "", 0.7)
	}

	results, err := eng.Retrieve(ctx, Query{Text: "memorable fact", Limit: 100})
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 20)
}

func TestEngine_Retrieve_RespectsScopeFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rerank = RerankNone
	cfg.MinScore = 0
	cfg.HardMinScore = 0
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()

	storeText(t, ctx, s, embedder, "secret project x launch plans for next quarter", "project:alpha", 0.9)

	results, err := eng.Retrieve(ctx, Query{Text: "project x launch plans", Limit: 5, ScopeFilter: []string{"global"}})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestEngine_Retrieve_ResultsAreMonotonicallyNonIncreasing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rerank = RerankNone
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()

	storeText(t, ctx, s, embedder, "alpha preference for tea over coffee in mornings", "", 0.9)
	storeText(t, ctx, s, embedder, "beta preference for quiet offices over open floor plans", "", 0.6)
	storeText(t, ctx, s, embedder, "gamma note about an unrelated topic entirely", "", 0.2)

	results, err := eng.Retrieve(ctx, Query{Text: "preference for tea and quiet offices", Limit: 10})
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestEngine_Retrieve_EveryResultMeetsHardMinScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rerank = RerankNone
	cfg.HardMinScore = 0.2
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()

	storeText(t, ctx, s, embedder, "one memorable fact about the project roadmap", "", 0.7)
	storeText(t, ctx, s, embedder, "another unrelated thought about lunch plans today", "", 0.7)

	results, err := eng.Retrieve(ctx, Query{Text: "project roadmap details", Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Score, cfg.HardMinScore)
	}
}

func TestEngine_Retrieve_VectorOnlyModeOmitsBM25Source(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeVector
	cfg.Rerank = RerankNone
	cfg.MinScore = 0
	cfg.HardMinScore = 0
	eng, s, embedder := newTestEngine(t, cfg)
	ctx := context.Background()

	storeText(t, ctx, s, embedder, "user prefers dark mode over light mode for the editor", "", 0.9)

	results, err := eng.Retrieve(ctx, Query{Text: "dark mode preference", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.False(t, r.InBM25)
	}
}

func TestEngine_UpdateConfigAndGetConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	eng, _, _ := newTestEngine(t, cfg)

	newCfg := cfg
	newCfg.HardMinScore = 0.42
	eng.UpdateConfig(newCfg)
	require.Equal(t, 0.42, eng.GetConfig().HardMinScore)
}

func TestEngine_Test_SucceedsWithReachableStoreAndEmbedder(t *testing.T) {
	eng, _, _ := newTestEngine(t, DefaultConfig())
	require.NoError(t, eng.Test(context.Background()))
}

// failingReranker reports itself available but errors on every call,
// standing in for a rerank endpoint that accepts connections and then
// falls over.
type failingReranker struct {
	calls int
}

func (r *failingReranker) Rerank(context.Context, string, []string, int) ([]RerankResult, error) {
	r.calls++
	return nil, errors.New("rerank endpoint down")
}

func (r *failingReranker) Available(context.Context) bool { return true }
func (r *failingReranker) Close() error                   { return nil }

func TestEngine_Retrieve_OpenBreakerStopsCallingCrossEncoder(t *testing.T) {
	// Given: a cross-encoder reranker that fails on every call
	cfg := DefaultConfig()
	cfg.Rerank = RerankCrossEncoder
	cfg.MinScore = 0
	cfg.HardMinScore = 0
	_, s, embedder := newTestEngine(t, cfg)

	rr := &failingReranker{}
	eng := NewEngine(s, embedder, rr, cfg, nil)

	ctx := context.Background()
	storeText(t, ctx, s, embedder, "user prefers dark mode in every editor", "", 0.8)

	// When: retrieving more times than the breaker tolerates failures
	for i := 0; i < 8; i++ {
		results, err := eng.Retrieve(ctx, Query{Text: "dark mode preference", Limit: 5})
		require.NoError(t, err)
		require.NotEmpty(t, results, "lightweight fallback should still rank results")
	}

	// Then: the circuit opened and later retrieves skipped the endpoint
	require.Equal(t, 5, rr.calls)
}
