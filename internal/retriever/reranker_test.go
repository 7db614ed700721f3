package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpReranker_PreservesOrderWithDecreasingScores(t *testing.T) {
	r := &NoOpReranker{}
	out, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 1, out[1].Index)
	assert.Greater(t, out[0].Score, out[1].Score)
}

func TestNoOpReranker_AlwaysAvailable(t *testing.T) {
	r := &NoOpReranker{}
	assert.True(t, r.Available(context.Background()))
}

func TestVoyageReranker_ParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.4},
			},
		})
	}))
	defer srv.Close()

	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "test-key", Endpoint: srv.URL})
	out, err := r.Rerank(context.Background(), "query", []string{"doc0", "doc1"}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Index)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestVoyageReranker_DiscardsOutOfRangeIndices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "relevance_score": 0.9},
				{"index": 5, "relevance_score": 0.8}, // beyond document count
			},
		})
	}))
	defer srv.Close()

	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "k", Endpoint: srv.URL})
	out, err := r.Rerank(context.Background(), "query", []string{"doc0"}, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Index)
}

func TestVoyageReranker_NonTwoXXIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid api key"))
	}))
	defer srv.Close()

	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "bad", Endpoint: srv.URL})
	_, err := r.Rerank(context.Background(), "query", []string{"doc0"}, 1)
	require.Error(t, err)
}

func TestVoyageReranker_TimeoutReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "k", Endpoint: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := r.Rerank(ctx, "query", []string{"doc0"}, 1)
	require.Error(t, err)
}

func TestVoyageReranker_EmptyDocumentsShortCircuits(t *testing.T) {
	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "k", Endpoint: "http://unused.invalid"})
	out, err := r.Rerank(context.Background(), "query", nil, 1)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestVoyageReranker_NotAvailableWithoutAPIKey(t *testing.T) {
	r := NewVoyageReranker(VoyageRerankerConfig{APIKey: "placeholder", Endpoint: "http://unused.invalid"})
	r.cfg.APIKey = ""
	assert.False(t, r.Available(context.Background()))
}
