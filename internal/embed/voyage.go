package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	voyageDefaultEndpoint = "https://api.voyageai.com/v1/embeddings"
	voyageDefaultModel    = "voyage-3"
)

// VoyageConfig configures a VoyageEmbedder.
type VoyageConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	Dimensions int
	Timeout    time.Duration
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// VoyageEmbedder embeds text via the Voyage AI embeddings API, which
// distinguishes query and passage roles through the input_type parameter
// but offers no dimension override.
type VoyageEmbedder struct {
	client     *http.Client
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	retry      RetryConfig
}

// NewVoyageEmbedder creates a Voyage embedder, probing the configured
// model to learn its output dimension.
func NewVoyageEmbedder(ctx context.Context, cfg VoyageConfig) (*VoyageEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("voyage: API key required")
	}
	model := cfg.Model
	if model == "" {
		model = voyageDefaultModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = voyageDefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &VoyageEmbedder{
		client:   &http.Client{Timeout: timeout},
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		retry:    DefaultRetryConfig(),
	}

	vecs, err := e.embed(ctx, []string{"probe"}, "query")
	if err != nil {
		return nil, fmt.Errorf("voyage: probe request failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("voyage: probe returned %d vectors, want 1", len(vecs))
	}
	e.dimensions = len(vecs[0])
	return e, nil
}

func (e *VoyageEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	var resp voyageResponse
	req := voyageRequest{Input: texts, Model: e.model, InputType: inputType}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	err := WithRetry(ctx, e.retry, func() error {
		return postJSON(ctx, e.client, e.endpoint, headers, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("voyage: embedding index %d out of range", d.Index)
		}
		out[d.Index] = normalizeVector(d.Embedding)
	}
	return out, nil
}

func (e *VoyageEmbedder) embedOne(ctx context.Context, text, role, inputType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed %s: empty input", role)
	}
	vecs, err := e.embed(ctx, []string{text}, inputType)
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) != e.dimensions {
		return nil, fmt.Errorf("voyage: dimension mismatch, got %d want %d", len(vecs[0]), e.dimensions)
	}
	return vecs[0], nil
}

// EmbedQuery embeds text tagged as a search query.
func (e *VoyageEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "query", "query")
}

// EmbedPassage embeds text tagged as a stored passage.
func (e *VoyageEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "passage", "document")
}

func (e *VoyageEmbedder) embedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
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
		vecs, err := e.embed(ctx, chunk, inputType)
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
func (e *VoyageEmbedder) EmbedBatchQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts, "query")
}

// EmbedBatchPassage embeds multiple passage texts.
func (e *VoyageEmbedder) EmbedBatchPassage(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts, "document")
}

// Dimensions returns the embedding length learned from the probe request.
func (e *VoyageEmbedder) Dimensions() int { return e.dimensions }

// Model returns the configured Voyage model name.
func (e *VoyageEmbedder) Model() string { return e.model }

// Test verifies the API key and endpoint are reachable.
func (e *VoyageEmbedder) Test(ctx context.Context) error {
	_, err := e.embedOne(ctx, "connectivity probe", "query", "query")
	return err
}

// CacheStats reports a zero-value cache; wrap in CachedEmbedder for one.
func (e *VoyageEmbedder) CacheStats() CacheStats { return CacheStats{} }

// Close releases the underlying HTTP client's idle connections.
func (e *VoyageEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
