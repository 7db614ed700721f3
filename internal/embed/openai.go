package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	openaiDefaultEndpoint = "https://api.openai.com/v1/embeddings"
	openaiDefaultModel    = "text-embedding-3-small"
)

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	Dimensions int // truncation override, honored only by text-embedding-3-* models
	Timeout    time.Duration
}

type openaiRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// OpenAIEmbedder embeds text via the OpenAI embeddings API. OpenAI makes
// no query/passage role distinction; the text-embedding-3-* family
// accepts a dimensions parameter that truncates the native embedding.
type OpenAIEmbedder struct {
	client      *http.Client
	apiKey      string
	model       string
	endpoint    string
	dimOverride int
	dimensions  int
	retry       RetryConfig
}

func supportsDimensionOverride(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3-")
}

// NewOpenAIEmbedder creates an OpenAI embedder, probing the configured
// model to learn its output dimension.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: API key required")
	}
	model := cfg.Model
	if model == "" {
		model = openaiDefaultModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = openaiDefaultEndpoint
	}
	dimOverride := 0
	if cfg.Dimensions > 0 && supportsDimensionOverride(model) {
		dimOverride = cfg.Dimensions
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	e := &OpenAIEmbedder{
		client:      &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		model:       model,
		endpoint:    endpoint,
		dimOverride: dimOverride,
		retry:       DefaultRetryConfig(),
	}

	vecs, err := e.embed(ctx, []string{"probe"})
	if err != nil {
		return nil, fmt.Errorf("openai: probe request failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("openai: probe returned %d vectors, want 1", len(vecs))
	}
	e.dimensions = len(vecs[0])
	return e, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openaiResponse
	req := openaiRequest{Input: texts, Model: e.model, Dimensions: e.dimOverride}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	err := WithRetry(ctx, e.retry, func() error {
		return postJSON(ctx, e.client, e.endpoint, headers, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = normalizeVector(d.Embedding)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedOne(ctx context.Context, text, role string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed %s: empty input", role)
	}
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) != e.dimensions {
		return nil, fmt.Errorf("openai: dimension mismatch, got %d want %d", len(vecs[0]), e.dimensions)
	}
	return vecs[0], nil
}

// EmbedQuery embeds text for use as a search query. OpenAI draws no
// distinction between query and passage roles.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "query")
}

// EmbedPassage embeds text for storage as a retrievable passage.
func (e *OpenAIEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "passage")
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	nonEmpty, nonEmptyIdx, blankIdx := splitNonEmpty(texts)
	result := make([][]float32, len(texts))
	for _, i := range blankIdx {
		result[i] = []float32{}
	}
	if len(nonEmpty) == 0 {
		return result, nil
	}

	pos := 0
	for _, chunk := range chunkStrings(nonEmpty, MaxBatchSize) {
		vecs, err := e.embed(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, vec := range vecs {
			result[nonEmptyIdx[pos]] = vec
			pos++
		}
	}
	return result, nil
}

// EmbedBatchQuery embeds multiple query texts.
func (e *OpenAIEmbedder) EmbedBatchQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts)
}

// EmbedBatchPassage embeds multiple passage texts.
func (e *OpenAIEmbedder) EmbedBatchPassage(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts)
}

// Dimensions returns the embedding length, honoring any truncation
// override applied at construction.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Model returns the configured OpenAI model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Test verifies the API key and endpoint are reachable.
func (e *OpenAIEmbedder) Test(ctx context.Context) error {
	_, err := e.embedOne(ctx, "connectivity probe", "query")
	return err
}

// CacheStats reports a zero-value cache; wrap in CachedEmbedder for one.
func (e *OpenAIEmbedder) CacheStats() CacheStats { return CacheStats{} }

// Close releases the underlying HTTP client's idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
