package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// RerankResult is a single reranked document with its relevance score
// and original position, so a caller can recover the candidate it came
// from.
type RerankResult struct {
	Index    int
	Score    float64
	Document string
}

// Reranker scores and reorders documents by relevance to a query using a
// cross-encoder model, which jointly encodes query-document pairs for
// more accurate relevance than the bi-encoder scores fusion produces.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
	Available(ctx context.Context) bool
	Close() error
}

// NoOpReranker returns documents in their original order with decreasing
// scores. Used when reranking is disabled.
type NoOpReranker struct{}

func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: 1.0 - float64(i)*0.01, Document: doc}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOpReranker) Available(_ context.Context) bool { return true }
func (n *NoOpReranker) Close() error                     { return nil }

var _ Reranker = (*NoOpReranker)(nil)

// rerankTimeout bounds a single cross-encoder call; a timeout drops
// straight into the lightweight fallback rather than blocking retrieval.
const rerankTimeout = 5 * time.Second

// VoyageRerankerConfig configures a cross-encoder reranker backed by
// Voyage's rerank endpoint.
type VoyageRerankerConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

type voyageRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type voyageRerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// VoyageReranker calls Voyage's cross-encoder rerank endpoint.
type VoyageReranker struct {
	cfg    VoyageRerankerConfig
	client *http.Client
}

// NewVoyageReranker constructs a reranker from cfg, reading the API key
// from the VOYAGE_API_KEY environment variable when cfg.APIKey is unset.
func NewVoyageReranker(cfg VoyageRerankerConfig) *VoyageReranker {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("VOYAGE_API_KEY")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.voyageai.com/v1/rerank"
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-2"
	}
	return &VoyageReranker{cfg: cfg, client: &http.Client{Timeout: rerankTimeout}}
}

// Rerank sends query and documents to the cross-encoder endpoint and
// returns the results in the order the response lists them; they are not
// re-sorted. Indices beyond the sent document count are discarded as
// malformed.
func (v *VoyageReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := voyageRerankRequest{Query: query, Documents: documents, Model: v.cfg.Model, TopK: topK}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, excerpt)
	}

	var decoded voyageRerankResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{Index: d.Index, Score: d.RelevanceScore, Document: documents[d.Index]})
	}
	return results, nil
}

// Available probes the reranker with a one-document request.
func (v *VoyageReranker) Available(ctx context.Context) bool {
	if v.cfg.APIKey == "" {
		return false
	}
	_, err := v.Rerank(ctx, "ping", []string{"ping"}, 1)
	return err == nil
}

func (v *VoyageReranker) Close() error { return nil }

var _ Reranker = (*VoyageReranker)(nil)
