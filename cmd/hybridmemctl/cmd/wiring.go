package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/hybridmem/internal/config"
	"github.com/Aman-CERP/hybridmem/internal/embed"
	"github.com/Aman-CERP/hybridmem/internal/mcp"
	"github.com/Aman-CERP/hybridmem/internal/retriever"
	"github.com/Aman-CERP/hybridmem/internal/scope"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

// app bundles the constructed pieces of a running memory core so CLI
// commands can reach past the MCP tool surface when that's cheaper than
// shelling out to a tool call (stats, list).
type app struct {
	cfg      *config.Config
	store    store.MemoryStore
	embedder embed.Embedder
	engine   retriever.Retriever
	scopes   *scope.Manager
	server   *mcp.Server
}

// agentIDEnv names the environment variable used to identify the calling
// agent for scope resolution. Reading it from the environment keeps the
// identity off every subcommand's flag set.
const agentIDEnv = "HYBRIDMEM_AGENT_ID"

func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderConfig{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Endpoint:   cfg.Embeddings.Endpoint,
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("construct embedder: %w", err)
	}

	st, err := store.OpenMemoryStore(store.MemoryStoreConfig{
		DataDir:      cfg.Store.DataDir,
		VectorConfig: store.DefaultVectorStoreConfig(embedder.Dimensions()),
		BM25Config:   store.DefaultBM25Config(),
		BM25Backend:  cfg.Store.BM25Backend,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	var reranker retriever.Reranker
	if cfg.Retrieval.Rerank == string(retriever.RerankCrossEncoder) && cfg.Rerank.Provider == "voyage" {
		reranker = retriever.NewVoyageReranker(retriever.VoyageRerankerConfig{
			APIKey:   os.Getenv("VOYAGE_API_KEY"),
			Model:    cfg.Rerank.Model,
			Endpoint: cfg.Rerank.Endpoint,
		})
	} else {
		reranker = &retriever.NoOpReranker{}
	}

	engine := retriever.NewEngine(st, embedder, reranker, cfg.Retrieval.ToEngineConfig(), logger)
	scopes := scope.New(cfg.Scopes)

	agentID := os.Getenv(agentIDEnv)
	srv := mcp.NewServer(engine, st, embedder, scopes, agentID, logger)

	return &app{cfg: cfg, store: st, embedder: embedder, engine: engine, scopes: scopes, server: srv}, nil
}

func (a *app) Close() error {
	return a.server.Close()
}
