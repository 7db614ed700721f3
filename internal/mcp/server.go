// Package mcp implements the Tool Surface: the Model Context Protocol
// (MCP) server exposing recall/store/forget/update/stats/list.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/hybridmem/internal/embed"
	amerrors "github.com/Aman-CERP/hybridmem/internal/errors"
	"github.com/Aman-CERP/hybridmem/internal/retriever"
	"github.com/Aman-CERP/hybridmem/internal/scope"
	"github.com/Aman-CERP/hybridmem/internal/store"
)

// Version identifies this build in the MCP implementation handshake.
const Version = "0.1.0"

const (
	minPrefixLen          = 8
	duplicateRejectScore  = 0.98
	duplicateSearchScore  = 0.1
	forgetCandidateLimit  = 5
	forgetAutoDeleteScore = 0.9
	updateResolveScore    = 0.85
)

// Server is the MCP server exposing the memory tool surface: recall,
// store, forget, update, stats, list.
type Server struct {
	mcp *mcp.Server

	retriever retriever.Retriever
	memStore  store.MemoryStore
	embedder  embed.Embedder
	scopes    *scope.Manager

	// agentID identifies the caller for scope-resolution purposes. A
	// single server instance serves one agent identity for the lifetime
	// of its stdio session.
	agentID string

	noiseCfg retriever.NoiseFilterConfig

	logger *slog.Logger
}

// NewServer builds the MCP server and registers the six memory tools.
func NewServer(r retriever.Retriever, s store.MemoryStore, embedder embed.Embedder, scopes *scope.Manager, agentID string, logger *slog.Logger) *Server {
	if scopes == nil {
		scopes = scope.New(scope.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "hybridmem",
			Version: Version,
		}, nil),
		retriever: r,
		memStore:  s,
		embedder:  embedder,
		scopes:    scopes,
		agentID:   agentID,
		noiseCfg:  retriever.DefaultNoiseFilterConfig(),
		logger:    logger,
	}

	srv.registerTools()
	return srv
}

// MCPServer returns the underlying go-sdk server, e.g. to run it over a
// transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over the named transport until ctx is canceled.
// Only "stdio" is currently implemented; the JSON-RPC stream requires
// stdout be reserved exclusively for protocol traffic, so callers must
// route logging elsewhere (see internal/logging.SetupMCPMode).
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting mcp server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp server stopped")
		return nil
	default:
		return fmt.Errorf("unsupported transport %q (supported: stdio)", transport)
	}
}

// Close closes the underlying store and embedder, returning the first error.
func (s *Server) Close() error {
	var errs []error
	if err := s.memStore.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall",
		Description: "Search previously stored memories for ones relevant to a natural-language query. Returns ranked results with scoring provenance (which signals contributed to each result: vector similarity, lexical match, reranking).",
	}, s.handleRecall)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "store",
		Description: "Remember a piece of text for later recall. Rejects near-duplicates of existing memories and low-value filler text.",
	}, s.handleStore)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget",
		Description: "Remove a memory by id or by describing it. A query with exactly one match above a strong confidence threshold deletes it immediately; otherwise the matches are returned as candidates for a follow-up call with memory_id.",
	}, s.handleForget)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update",
		Description: "Replace the text, importance, or category of an existing memory, identified by id, id prefix, or description.",
	}, s.handleUpdate)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report total memory count plus per-scope and per-category breakdowns.",
	}, s.handleStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list",
		Description: "List stored memories newest first, optionally filtered by scope or category.",
	}, s.handleList)

	s.logger.Debug("registered mcp tools", slog.Int("count", 6))
}

// resolveScopeFilter translates an optional requested scope into the
// filter list passed to the store/retriever, enforcing access control
// before any data access: an explicitly requested scope the caller
// cannot access is always rejected, never silently narrowed.
func (s *Server) resolveScopeFilter(requested string) ([]string, error) {
	if requested == "" {
		return s.scopes.GetAccessibleScopes(s.agentID), nil
	}
	if !s.scopes.IsAccessible(requested, s.agentID) {
		return nil, amerrors.ScopeDeniedError("agent does not have access to scope " + requested)
	}
	return []string{requested}, nil
}

func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RecallOutput{}, amerrors.ValidationError("query must not be empty", nil)
	}

	scopeFilter, err := s.resolveScopeFilter(input.Scope)
	if err != nil {
		return nil, RecallOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	var category *store.Category
	if input.Category != "" {
		c := store.Category(input.Category)
		if !store.ValidCategory(c) {
			return nil, RecallOutput{}, amerrors.ValidationError("unknown category "+input.Category, nil)
		}
		category = &c
	}

	results, err := s.retriever.Retrieve(ctx, retriever.Query{
		Text:        input.Query,
		Limit:       limit,
		ScopeFilter: scopeFilter,
		Category:    category,
	})
	if err != nil {
		return nil, RecallOutput{}, classifyErr(err)
	}

	if category != nil {
		filtered := results[:0]
		for _, r := range results {
			if r.Record.Category == *category {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	output := RecallOutput{
		Results: make([]RecallResult, 0, len(results)),
		Count:   len(results),
	}
	for _, r := range results {
		output.Results = append(output.Results, toRecallResult(r))
	}
	output.Formatted = FormatRecallResults(input.Query, output.Results)

	return nil, output, nil
}

func toRecallResult(r retriever.Result) RecallResult {
	res := RecallResult{
		ID:         r.Record.ID,
		Text:       r.Record.Text,
		Category:   r.Record.Category,
		Scope:      r.Record.Scope,
		Importance: r.Record.Importance,
		Timestamp:  r.Record.Timestamp,
		Score:      r.Score,
		Sources: RecallSources{
			Reranked:     r.Reranked,
			MatchedTerms: r.MatchedTerms,
		},
	}
	if r.InVector {
		v := r.VectorScore
		res.Sources.Vector = &v
	}
	if r.InBM25 {
		b := r.BM25Score
		res.Sources.BM25 = &b
	}
	return res
}

func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, StoreOutput{}, amerrors.ValidationError("text must not be empty", nil)
	}
	if retriever.IsNoise(text, s.noiseCfg) {
		return nil, StoreOutput{Status: "noise", Message: "text classified as low-value filler, not stored"}, nil
	}

	scopeName := input.Scope
	if scopeName == "" {
		scopeName = s.scopes.GetDefaultScope(s.agentID)
	} else if !s.scopes.IsAccessible(scopeName, s.agentID) {
		return nil, StoreOutput{}, amerrors.ScopeDeniedError("agent does not have access to scope " + scopeName)
	}

	category := store.Category(input.Category)
	if category == "" {
		category = store.CategoryOther
	}
	if !store.ValidCategory(category) {
		return nil, StoreOutput{}, amerrors.ValidationError("unknown category "+input.Category, nil)
	}

	importance := input.Importance
	if importance == 0 {
		importance = store.DefaultImportance
	}
	importance = store.SanitizeImportance(importance)

	if s.embedder == nil {
		return nil, StoreOutput{}, amerrors.EngineError("no embedder configured", nil)
	}
	vector, err := s.embedder.EmbedPassage(ctx, text)
	if err != nil {
		return nil, StoreOutput{}, amerrors.Wrap(amerrors.ErrCodeRemoteService, err)
	}

	// Dedup uses the store's raw vector search, not the full retrieval
	// pipeline: recency/importance/length-norm shaping routinely pulls a
	// true duplicate's score well below duplicateRejectScore, which would
	// make the check nearly unreachable.
	dupes, err := s.memStore.VectorSearch(ctx, vector, 1, duplicateSearchScore, []string{scopeName})
	if err != nil {
		return nil, StoreOutput{}, classifyErr(err)
	}
	for _, r := range dupes {
		if r.Score > duplicateRejectScore {
			return nil, StoreOutput{
				Status:     "duplicate",
				ExistingID: r.Record.ID,
				Message:    "an existing memory is effectively identical",
			}, nil
		}
	}

	id := store.NewRecordID()

	record := store.MemoryRecord{
		ID:         id,
		Text:       text,
		Vector:     vector,
		Category:   category,
		Scope:      scopeName,
		Importance: importance,
		Timestamp:  time.Now().UnixMilli(),
		Metadata:   "{}",
	}

	if err := s.memStore.Store(ctx, record); err != nil {
		return nil, StoreOutput{}, classifyErr(err)
	}

	return nil, StoreOutput{Status: "stored", ID: id}, nil
}

func (s *Server) handleForget(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	scopeFilter, err := s.resolveScopeFilter(input.Scope)
	if err != nil {
		return nil, ForgetOutput{}, err
	}

	if input.MemoryID != "" {
		if err := s.memStore.Delete(ctx, input.MemoryID, scopeFilter); err != nil {
			return nil, ForgetOutput{}, classifyStoreErr(err)
		}
		return nil, ForgetOutput{Status: "deleted", DeletedID: input.MemoryID}, nil
	}

	if strings.TrimSpace(input.Query) == "" {
		return nil, ForgetOutput{}, amerrors.ValidationError("forget requires either memory_id or query", nil)
	}

	results, err := s.retriever.Retrieve(ctx, retriever.Query{
		Text:        input.Query,
		Limit:       forgetCandidateLimit,
		ScopeFilter: scopeFilter,
	})
	if err != nil {
		return nil, ForgetOutput{}, classifyErr(err)
	}

	if len(results) == 1 && results[0].Score > forgetAutoDeleteScore {
		id := results[0].Record.ID
		if err := s.memStore.Delete(ctx, id, scopeFilter); err != nil {
			return nil, ForgetOutput{}, classifyStoreErr(err)
		}
		return nil, ForgetOutput{Status: "deleted", DeletedID: id}, nil
	}

	candidates := make([]RecallResult, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, toRecallResult(r))
	}
	return nil, ForgetOutput{
		Status:     "needs_confirmation",
		Candidates: candidates,
		Message:    "no single confident match; call again with memory_id set to one of the candidates",
	}, nil
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if input.Text == "" && input.Importance == nil && input.Category == "" {
		return nil, UpdateOutput{}, amerrors.ValidationError("update requires at least one of text, importance, category", nil)
	}

	scopeFilter := s.scopes.GetAccessibleScopes(s.agentID)

	id := input.MemoryID
	if !looksLikeID(id) {
		results, err := s.retriever.Retrieve(ctx, retriever.Query{
			Text:        id,
			Limit:       2,
			ScopeFilter: scopeFilter,
		})
		if err != nil {
			return nil, UpdateOutput{}, classifyErr(err)
		}
		if len(results) == 0 {
			return nil, UpdateOutput{}, amerrors.NotFoundError("no memory matches description", nil)
		}
		if len(results) > 1 && results[0].Score <= updateResolveScore {
			return nil, UpdateOutput{Status: "ambiguous"}, nil
		}
		id = results[0].Record.ID
	}

	existing, err := s.memStore.Get(ctx, id, scopeFilter)
	if err != nil {
		return nil, UpdateOutput{}, classifyStoreErr(err)
	}

	updated := existing
	textChanged := false
	if input.Text != "" {
		text := strings.TrimSpace(input.Text)
		if retriever.IsNoise(text, s.noiseCfg) {
			return nil, UpdateOutput{}, amerrors.NoiseError("replacement text classified as low-value filler")
		}
		updated.Text = text
		textChanged = true
	}
	if input.Importance != nil {
		updated.Importance = store.SanitizeImportance(*input.Importance)
	}
	if input.Category != "" {
		c := store.Category(input.Category)
		if !store.ValidCategory(c) {
			return nil, UpdateOutput{}, amerrors.ValidationError("unknown category "+input.Category, nil)
		}
		updated.Category = c
	}

	if textChanged {
		if s.embedder == nil {
			return nil, UpdateOutput{}, amerrors.EngineError("no embedder configured", nil)
		}
		vector, err := s.embedder.EmbedPassage(ctx, updated.Text)
		if err != nil {
			return nil, UpdateOutput{}, amerrors.Wrap(amerrors.ErrCodeRemoteService, err)
		}
		updated.Vector = vector
	}

	if err := s.memStore.Update(ctx, id, updated, scopeFilter); err != nil {
		return nil, UpdateOutput{}, classifyStoreErr(err)
	}

	return nil, UpdateOutput{Status: "updated", ID: id}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	scopeFilter, err := s.resolveScopeFilter(input.Scope)
	if err != nil {
		return nil, StatsOutput{}, err
	}

	stats, err := s.memStore.Stats(ctx, scopeFilter)
	if err != nil {
		return nil, StatsOutput{}, classifyStoreErr(err)
	}

	byCategory := make(map[string]int, len(stats.ByCategory))
	for k, v := range stats.ByCategory {
		byCategory[string(k)] = v
	}

	return nil, StatsOutput{
		Total:      stats.Total,
		ByScope:    stats.ByScope,
		ByCategory: byCategory,
	}, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	scopeFilter, err := s.resolveScopeFilter(input.Scope)
	if err != nil {
		return nil, ListOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	summaries, err := s.memStore.List(ctx, scopeFilter, store.Category(input.Category), input.Offset, limit)
	if err != nil {
		return nil, ListOutput{}, classifyStoreErr(err)
	}

	records := make([]ListRecord, 0, len(summaries))
	for _, r := range summaries {
		records = append(records, ListRecord{
			ID:         r.ID,
			Text:       r.Text,
			Category:   r.Category,
			Scope:      r.Scope,
			Importance: r.Importance,
			Timestamp:  r.Timestamp,
		})
	}

	return nil, ListOutput{Records: records, Count: len(records)}, nil
}

// looksLikeID reports whether s resembles a full id or an unambiguous id
// prefix (>=8 hex characters, optionally hyphenated) rather than a
// free-text description.
func looksLikeID(s string) bool {
	if store.ValidRecordID(s) {
		return true
	}
	stripped := strings.ReplaceAll(s, "-", "")
	if len(stripped) < minPrefixLen {
		return false
	}
	for _, r := range stripped {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return false
		}
	}
	return true
}

// classifyErr passes through a MemError unchanged (the retriever and
// embedder already construct them) and wraps anything else as internal.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var me *amerrors.MemError
	if errors.As(err, &me) {
		return me
	}
	return amerrors.InternalError(err.Error(), err)
}

// classifyStoreErr wraps the plain errors returned by internal/store (it
// has no dependency on internal/errors) into the structured taxonomy the
// tool surface promises its callers, sniffing the store's stable error
// phrasing for the cases callers branch on.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "records match prefix"):
		return amerrors.AmbiguousPrefixError(msg)
	case strings.Contains(msg, "no record matches"):
		return amerrors.NotFoundError(msg, err)
	case strings.Contains(msg, "not in an accessible scope"):
		return amerrors.ScopeDeniedError(msg)
	default:
		return amerrors.EngineError(msg, err)
	}
}
