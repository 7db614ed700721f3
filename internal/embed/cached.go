package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder wraps an Embedder with a TTL-bounded LRU cache keyed by
// (role, text), short-circuiting repeat calls.
type CachedEmbedder struct {
	inner    Embedder
	cache    *lru.LRU[string, []float32]
	capacity int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size and
// TTL. A non-positive size or TTL falls back to the package defaults.
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner:    inner,
		cache:    lru.NewLRU[string, []float32](size, nil, ttl),
		capacity: size,
	}
}

// NewCachedEmbedderWithDefaults wraps inner with the package's default
// cache size and TTL.
func NewCachedEmbedderWithDefaults(inner Embedder) *CachedEmbedder {
	return NewCachedEmbedder(inner, DefaultCacheSize, DefaultCacheTTL)
}

// cacheKey hashes (role, model, text) to a fixed-length key (the first 12
// bytes of the SHA-256 digest, as 24 hex characters), bounding the memory a
// pathologically long input text would otherwise consume as a map key.
func (c *CachedEmbedder) cacheKey(role Role, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(role))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c.inner.Model()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:12])
}

func (c *CachedEmbedder) embed(ctx context.Context, role Role, text string, compute func(context.Context, string) ([]float32, error)) ([]float32, error) {
	key := c.cacheKey(role, text)
	if vec, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := compute(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedQuery returns the cached query embedding if present, else computes
// and caches it.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, RoleQuery, text, c.inner.EmbedQuery)
}

// EmbedPassage returns the cached passage embedding if present, else
// computes and caches it.
func (c *CachedEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, RolePassage, text, c.inner.EmbedPassage)
}

func (c *CachedEmbedder) embedBatch(ctx context.Context, role Role, texts []string, computeBatch func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(role, text)
		if vec, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			results[i] = vec
			continue
		}
		c.misses.Add(1)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := computeBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		results[idx] = computed[j]
		c.cache.Add(c.cacheKey(role, texts[idx]), computed[j])
	}
	return results, nil
}

// EmbedBatchQuery embeds multiple query texts, caching each result
// individually for maximum cache reuse across differently-batched calls.
func (c *CachedEmbedder) EmbedBatchQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedBatch(ctx, RoleQuery, texts, c.inner.EmbedBatchQuery)
}

// EmbedBatchPassage embeds multiple passage texts with the same
// per-text caching as EmbedBatchQuery.
func (c *CachedEmbedder) EmbedBatchPassage(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedBatch(ctx, RolePassage, texts, c.inner.EmbedBatchPassage)
}

// Dimensions passes through to the inner embedder.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Model passes through to the inner embedder.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Test passes through to the inner embedder.
func (c *CachedEmbedder) Test(ctx context.Context) error {
	return c.inner.Test(ctx)
}

// CacheStats reports the cache's current occupancy and hit/miss counts.
func (c *CachedEmbedder) CacheStats() CacheStats {
	return CacheStats{
		Size:     c.cache.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// Inner returns the underlying embedder.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}
