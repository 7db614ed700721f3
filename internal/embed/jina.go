package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	jinaDefaultEndpoint = "https://api.jina.ai/v1/embeddings"
	jinaDefaultModel    = "jina-embeddings-v3"
)

// JinaConfig configures a JinaEmbedder.
type JinaConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

type jinaRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
	Task  string   `json:"task,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// JinaEmbedder embeds text via the Jina AI embeddings API. Role
// distinction is carried through the task parameter, but Jina honors it
// only for the v3 model family; older models ignore it silently.
type JinaEmbedder struct {
	client       *http.Client
	apiKey       string
	model        string
	endpoint     string
	supportsTask bool
	dimensions   int
	retry        RetryConfig
}

func jinaSupportsTask(model string) bool {
	return strings.Contains(model, "-v3")
}

// NewJinaEmbedder creates a Jina embedder, probing the configured model
// to learn its output dimension.
func NewJinaEmbedder(ctx context.Context, cfg JinaConfig) (*JinaEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("jina: API key required")
	}
	model := cfg.Model
	if model == "" {
		model = jinaDefaultModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = jinaDefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	e := &JinaEmbedder{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		model:        model,
		endpoint:     endpoint,
		supportsTask: jinaSupportsTask(model),
		retry:        DefaultRetryConfig(),
	}

	vecs, err := e.embed(ctx, []string{"probe"}, "retrieval.query")
	if err != nil {
		return nil, fmt.Errorf("jina: probe request failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("jina: probe returned %d vectors, want 1", len(vecs))
	}
	e.dimensions = len(vecs[0])
	return e, nil
}

func (e *JinaEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	req := jinaRequest{Input: texts, Model: e.model}
	if e.supportsTask {
		req.Task = task
	}
	var resp jinaResponse
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	err := WithRetry(ctx, e.retry, func() error {
		return postJSON(ctx, e.client, e.endpoint, headers, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("jina: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("jina: embedding index %d out of range", d.Index)
		}
		out[d.Index] = normalizeVector(d.Embedding)
	}
	return out, nil
}

func (e *JinaEmbedder) embedOne(ctx context.Context, text, role, task string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed %s: empty input", role)
	}
	vecs, err := e.embed(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) != e.dimensions {
		return nil, fmt.Errorf("jina: dimension mismatch, got %d want %d", len(vecs[0]), e.dimensions)
	}
	return vecs[0], nil
}

// EmbedQuery embeds text tagged as a search query (v3 models only).
func (e *JinaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "query", "retrieval.query")
}

// EmbedPassage embeds text tagged as a stored passage (v3 models only).
func (e *JinaEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text, "passage", "retrieval.passage")
}

func (e *JinaEmbedder) embedBatch(ctx context.Context, texts []string, task string) ([][]float32, error) {
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
		vecs, err := e.embed(ctx, chunk, task)
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
func (e *JinaEmbedder) EmbedBatchQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts, "retrieval.query")
}

// EmbedBatchPassage embeds multiple passage texts.
func (e *JinaEmbedder) EmbedBatchPassage(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts, "retrieval.passage")
}

// Dimensions returns the embedding length learned from the probe request.
func (e *JinaEmbedder) Dimensions() int { return e.dimensions }

// Model returns the configured Jina model name.
func (e *JinaEmbedder) Model() string { return e.model }

// Test verifies the API key and endpoint are reachable.
func (e *JinaEmbedder) Test(ctx context.Context) error {
	_, err := e.embedOne(ctx, "connectivity probe", "query", "retrieval.query")
	return err
}

// CacheStats reports a zero-value cache; wrap in CachedEmbedder for one.
func (e *JinaEmbedder) CacheStats() CacheStats { return CacheStats{} }

// Close releases the underlying HTTP client's idle connections.
func (e *JinaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
