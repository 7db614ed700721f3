package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_EmbedQuery_ReturnsCorrectDimensions(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	magnitude := vectorMagnitude(embedding)
	assert.InDelta(t, 1.0, magnitude, 0.001, "vector should be normalized to unit length")
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "remembered that the user prefers dark mode"

	emb1, err1 := embedder.EmbedQuery(context.Background(), text)
	emb2, err2 := embedder.EmbedQuery(context.Background(), text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same text should produce identical vectors")
}

func TestStaticEmbedder_Embed_DeterministicAcrossInstances(t *testing.T) {
	embedder1 := NewStaticEmbedder()
	embedder2 := NewStaticEmbedder()
	defer func() { _ = embedder1.Close() }()
	defer func() { _ = embedder2.Close() }()

	text := "the last meeting ran long"

	emb1, _ := embedder1.EmbedQuery(context.Background(), text)
	emb2, _ := embedder2.EmbedQuery(context.Background(), text)

	assert.Equal(t, emb1, emb2)
}

func TestStaticEmbedder_Embed_DifferentTextsProduceDifferentVectors(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	emb1, _ := embedder.EmbedQuery(context.Background(), "the user likes coffee")
	emb2, _ := embedder.EmbedQuery(context.Background(), "the deploy failed last night")

	assert.NotEqual(t, emb1, emb2)
}

func TestStaticEmbedder_Embed_EmptyInput_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	for i, v := range embedding {
		assert.Equal(t, float32(0), v, "element %d should be zero", i)
	}
}

func TestStaticEmbedder_Embed_WhitespaceOnly_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "   \t\n  ")
	require.NoError(t, err)
	for _, v := range embedding {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_SimilarText_HasHigherSimilarity(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	a := "the user prefers dark mode for the editor"
	b := "the user likes dark mode in their editor"
	c := "deploy pipeline failed due to a timeout"

	embA, _ := embedder.EmbedQuery(context.Background(), a)
	embB, _ := embedder.EmbedQuery(context.Background(), b)
	embC, _ := embedder.EmbedQuery(context.Background(), c)

	simAB := cosineSimilarity(embA, embB)
	simAC := cosineSimilarity(embA, embC)

	assert.Greater(t, simAB, simAC,
		"similar sentences should have higher similarity (ab: %.4f) than unrelated ones (ac: %.4f)", simAB, simAC)
}

func TestStaticEmbedder_StopWordFiltering(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	withStopWords := "the a an and or is are was"
	withoutStopWords := "calculate process validate"

	embWith, _ := embedder.EmbedQuery(context.Background(), withStopWords)
	embWithout, _ := embedder.EmbedQuery(context.Background(), withoutStopWords)

	similarity := cosineSimilarity(embWith, embWithout)
	assert.Less(t, similarity, float64(0.5),
		"stop words should be filtered, making vectors different (similarity: %.4f)", similarity)
}

func TestStaticEmbedder_ImplementsEmbedderInterface(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	var _ Embedder = embedder
}

func TestStaticEmbedder_Dimensions_Returns256(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, StaticDimensions, embedder.Dimensions())
}

func TestStaticEmbedder_Model_ReturnsStatic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static", embedder.Model())
}

func TestStaticEmbedder_EmbedBatchQuery_ReturnsCorrectCount(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{"the user likes tea", "the deploy failed", "meeting notes from monday"}

	embeddings, err := embedder.EmbedBatchQuery(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, embeddings, 3)
	for i, emb := range embeddings {
		assert.Len(t, emb, StaticDimensions, "embedding %d should have correct dimensions", i)
	}
}

func TestStaticEmbedder_EmbedBatchQuery_EmptyList_ReturnsEmpty(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embeddings, err := embedder.EmbedBatchQuery(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestStaticEmbedder_EmbedBatchQuery_HandlesEmptyStringsInBatch(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"the user prefers dark mode",
		"",
		"the last deploy failed",
	}

	embeddings, err := embedder.EmbedBatchQuery(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, embeddings, 3)

	for _, v := range embeddings[1] {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_Close_IsIdempotent(t *testing.T) {
	embedder := NewStaticEmbedder()

	assert.NoError(t, embedder.Close())
	assert.NoError(t, embedder.Close())
	assert.NoError(t, embedder.Close())
}

func TestStaticEmbedder_Embed_AfterClose_ReturnsError(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	_, err := embedder.EmbedQuery(context.Background(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestStaticEmbedder_Test_AfterClose_ReturnsError(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	err := embedder.Test(context.Background())
	require.Error(t, err)
}

func TestStaticEmbedder_Embed_UnicodeText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"the user said 日本語 during the call",
		"комментарий на русском",
		"celebrated with an emoji 🚀",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			embedding, err := embedder.EmbedQuery(context.Background(), text)
			require.NoError(t, err)
			assert.Len(t, embedding, StaticDimensions)
		})
	}
}

func TestStaticEmbedder_Embed_LongText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	longText := ""
	for i := 0; i < 10000; i++ {
		longText += "word "
	}

	embedding, err := embedder.EmbedQuery(context.Background(), longText)
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}

func TestStaticEmbedder_Performance(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = "note number recorded during session"
	}

	start := time.Now()
	for _, text := range texts {
		_, err := embedder.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 1*time.Second,
		"embedding 1000 texts should take < 1s (took %v)", elapsed)
}
