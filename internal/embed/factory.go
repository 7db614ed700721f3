package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType identifies a remote embedding provider.
type ProviderType string

const (
	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderJina uses the Jina AI embeddings API.
	ProviderJina ProviderType = "jina"

	// ProviderStatic uses the hash-based embedder (no network, no API key).
	ProviderStatic ProviderType = "static"
)

// ProviderConfig holds the settings needed to construct any provider. Only
// the fields relevant to the selected Provider are consulted.
type ProviderConfig struct {
	Provider   ProviderType
	Model      string
	APIKey     string
	Endpoint   string
	Dimensions int // OpenAI truncation override only
	Timeout    time.Duration
}

// NewEmbedder constructs an Embedder for the configured provider and
// wraps it in the query/passage cache unless caching is disabled via
// HYBRIDMEM_EMBED_CACHE.
//
// HYBRIDMEM_EMBEDDER overrides cfg.Provider when set ("voyage", "openai",
// "jina", "static").
func NewEmbedder(ctx context.Context, cfg ProviderConfig) (Embedder, error) {
	provider := cfg.Provider
	if envProvider := os.Getenv("HYBRIDMEM_EMBEDDER"); envProvider != "" {
		provider = ParseProvider(envProvider)
	}

	apiKey := cfg.APIKey
	if envKey := providerAPIKeyEnv(provider); envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			apiKey = v
		}
	}

	var embedder Embedder
	var err error
	switch provider {
	case ProviderVoyage:
		embedder, err = NewVoyageEmbedder(ctx, VoyageConfig{
			APIKey: apiKey, Model: cfg.Model, Endpoint: cfg.Endpoint, Timeout: cfg.Timeout,
		})
	case ProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(ctx, OpenAIConfig{
			APIKey: apiKey, Model: cfg.Model, Endpoint: cfg.Endpoint, Dimensions: cfg.Dimensions, Timeout: cfg.Timeout,
		})
	case ProviderJina:
		embedder, err = NewJinaEmbedder(ctx, JinaConfig{
			APIKey: apiKey, Model: cfg.Model, Endpoint: cfg.Endpoint, Timeout: cfg.Timeout,
		})
	case ProviderStatic:
		embedder, err = NewStaticEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", provider, err)
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

func providerAPIKeyEnv(p ProviderType) string {
	switch p {
	case ProviderVoyage:
		return "VOYAGE_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderJina:
		return "JINA_API_KEY"
	default:
		return ""
	}
}

// isCacheDisabled reports whether HYBRIDMEM_EMBED_CACHE requests the
// query/passage cache be skipped.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("HYBRIDMEM_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider converts a string to ProviderType, defaulting to static
// when unrecognized so a typo never silently contacts the wrong service.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voyage", "voyageai":
		return ProviderVoyage
	case "openai":
		return ProviderOpenAI
	case "jina":
		return ProviderJina
	case "static":
		return ProviderStatic
	default:
		return ProviderStatic
	}
}

// String returns the string representation of ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderVoyage), string(ProviderOpenAI), string(ProviderJina), string(ProviderStatic)}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo describes an embedder's identity for diagnostics.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
}

// GetInfo reports an embedder's provider, model, and dimension,
// unwrapping a CachedEmbedder to inspect the underlying provider type.
func GetInfo(embedder Embedder) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	info := EmbedderInfo{Model: embedder.Model(), Dimensions: embedder.Dimensions()}
	switch inner.(type) {
	case *VoyageEmbedder:
		info.Provider = ProviderVoyage
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	case *JinaEmbedder:
		info.Provider = ProviderJina
	default:
		info.Provider = ProviderStatic
	}
	return info
}

// MustNewEmbedder creates an embedder and panics on failure. Use only in
// tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, cfg ProviderConfig) Embedder {
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
