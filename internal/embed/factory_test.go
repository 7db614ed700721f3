package embed

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider_RecognizesKnownNames(t *testing.T) {
	assert.Equal(t, ProviderVoyage, ParseProvider("voyage"))
	assert.Equal(t, ProviderOpenAI, ParseProvider("OpenAI"))
	assert.Equal(t, ProviderJina, ParseProvider("jina"))
	assert.Equal(t, ProviderStatic, ParseProvider("static"))
}

func TestParseProvider_UnrecognizedFallsBackToStatic(t *testing.T) {
	assert.Equal(t, ProviderStatic, ParseProvider("bogus"))
	assert.Equal(t, ProviderStatic, ParseProvider(""))
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("voyage"))
	assert.True(t, IsValidProvider("STATIC"))
	assert.False(t, IsValidProvider("bogus"))
}

func TestNewEmbedder_StaticProvider_AlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static", embedder.Model())
	_, err = embedder.EmbedQuery(ctx, "hello")
	assert.NoError(t, err)
}

func TestNewEmbedder_EnvVarOverridesConfiguredProvider(t *testing.T) {
	orig := os.Getenv("HYBRIDMEM_EMBEDDER")
	defer os.Setenv("HYBRIDMEM_EMBEDDER", orig)
	os.Setenv("HYBRIDMEM_EMBEDDER", "static")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderOpenAI})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static", embedder.Model())
}

func TestNewEmbedder_UnknownProvider_ReturnsError(t *testing.T) {
	ctx := context.Background()
	_, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderType("bogus")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestNewEmbedder_CacheDisabledByEnvVar(t *testing.T) {
	orig := os.Getenv("HYBRIDMEM_EMBED_CACHE")
	defer os.Setenv("HYBRIDMEM_EMBED_CACHE", orig)
	os.Setenv("HYBRIDMEM_EMBED_CACHE", "false")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	_, isCached := embedder.(*CachedEmbedder)
	assert.False(t, isCached, "embedder should not be wrapped when caching is disabled")
}

func TestNewEmbedder_CacheEnabledByDefault(t *testing.T) {
	orig := os.Getenv("HYBRIDMEM_EMBED_CACHE")
	defer os.Setenv("HYBRIDMEM_EMBED_CACHE", orig)
	os.Unsetenv("HYBRIDMEM_EMBED_CACHE")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	_, isCached := embedder.(*CachedEmbedder)
	assert.True(t, isCached)
}

func TestGetInfo_UnwrapsCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderConfig{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	info := GetInfo(embedder)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.Equal(t, "static", info.Model)
	assert.Equal(t, StaticDimensions, info.Dimensions)
}

func TestSupportsDimensionOverride(t *testing.T) {
	assert.True(t, supportsDimensionOverride("text-embedding-3-small"))
	assert.True(t, supportsDimensionOverride("text-embedding-3-large"))
	assert.False(t, supportsDimensionOverride("text-embedding-ada-002"))
}

func TestJinaSupportsTask(t *testing.T) {
	assert.True(t, jinaSupportsTask("jina-embeddings-v3"))
	assert.False(t, jinaSupportsTask("jina-embeddings-v2-base-en"))
}
