package embed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double that counts calls.
type mockEmbedder struct {
	queryCalls atomic.Int64
	batchCalls atomic.Int64
	dimensions int
	model      string
	vector     []float32
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &mockEmbedder{dimensions: dims, model: "mock-model", vector: vec}
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.queryCalls.Add(1)
	return m.vector, nil
}

func (m *mockEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	m.queryCalls.Add(1)
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatchQuery(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.vector
	}
	return result, nil
}

func (m *mockEmbedder) EmbedBatchPassage(ctx context.Context, texts []string) ([][]float32, error) {
	return m.EmbedBatchQuery(ctx, texts)
}

func (m *mockEmbedder) Dimensions() int             { return m.dimensions }
func (m *mockEmbedder) Model() string               { return m.model }
func (m *mockEmbedder) Test(ctx context.Context) error { return nil }
func (m *mockEmbedder) CacheStats() CacheStats      { return CacheStats{} }
func (m *mockEmbedder) Close() error                { return nil }

func TestCachedEmbedder_EmbedQuery_CachesRepeatCalls(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	_, err := c.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	_, err = c.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.queryCalls.Load())
}

func TestCachedEmbedder_QueryAndPassageRolesCacheSeparately(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	_, err := c.EmbedQuery(context.Background(), "same text")
	require.NoError(t, err)
	_, err = c.EmbedPassage(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.queryCalls.Load())
}

func TestCachedEmbedder_EmbedBatchQuery_OnlyComputesUncached(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	_, err := c.EmbedQuery(context.Background(), "a")
	require.NoError(t, err)

	results, err := c.EmbedBatchQuery(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_EmbedBatchQuery_EmptyInputReturnsEmptySlice(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	results, err := c.EmbedBatchQuery(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCachedEmbedder_TTLExpiresEntries(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedder(inner, 10, 10*time.Millisecond)

	_, err := c.EmbedQuery(context.Background(), "expiring")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = c.EmbedQuery(context.Background(), "expiring")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.queryCalls.Load())
}

func TestCachedEmbedder_CacheStats_ReportsHitsAndMisses(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	_, _ = c.EmbedQuery(context.Background(), "x")
	_, _ = c.EmbedQuery(context.Background(), "x")

	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

func TestCachedEmbedder_PassthroughMethods(t *testing.T) {
	inner := newMockEmbedder(4)
	c := NewCachedEmbedderWithDefaults(inner)

	assert.Equal(t, 4, c.Dimensions())
	assert.Equal(t, "mock-model", c.Model())
	assert.NoError(t, c.Test(context.Background()))
	assert.NoError(t, c.Close())
	assert.Same(t, inner, c.Inner())
}
