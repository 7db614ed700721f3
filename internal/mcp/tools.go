package mcp

import "github.com/Aman-CERP/hybridmem/internal/store"

// RecallInput is the input schema for the recall tool.
type RecallInput struct {
	Query    string `json:"query" jsonschema:"the natural-language query to search stored memories for"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, clamped to [1,20], default 5"`
	Scope    string `json:"scope,omitempty" jsonschema:"restrict the search to a single accessible scope; default is every scope the caller can access"`
	Category string `json:"category,omitempty" jsonschema:"restrict results to one of: preference, fact, decision, entity, other"`
}

// RecallOutput is the output schema for the recall tool.
type RecallOutput struct {
	Formatted string         `json:"formatted" jsonschema:"human-readable rendering of the results"`
	Results   []RecallResult `json:"results" jsonschema:"ranked results with per-source scoring provenance"`
	Count     int            `json:"count" jsonschema:"number of results returned"`
}

// RecallResult is a single ranked memory with scoring provenance.
type RecallResult struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Category   store.Category  `json:"category"`
	Scope      string          `json:"scope"`
	Importance float64         `json:"importance"`
	Timestamp  int64           `json:"timestamp"`
	Score      float64         `json:"score"`
	Sources    RecallSources   `json:"sources"`
}

// RecallSources exposes which retrieval signals contributed to a result,
// so a caller can judge why it surfaced.
type RecallSources struct {
	Vector       *float64 `json:"vector,omitempty"`
	BM25         *float64 `json:"bm25,omitempty"`
	Reranked     bool     `json:"reranked"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// StoreInput is the input schema for the store tool.
type StoreInput struct {
	Text       string  `json:"text" jsonschema:"the text to remember"`
	Importance float64 `json:"importance,omitempty" jsonschema:"a real number in [0,1]; defaults to 0.7"`
	Category   string  `json:"category,omitempty" jsonschema:"one of: preference, fact, decision, entity, other; defaults to other"`
	Scope      string  `json:"scope,omitempty" jsonschema:"access-boundary scope to store under; defaults to the configured default scope (global unless configured otherwise)"`
}

// StoreOutput is the output schema for the store tool.
type StoreOutput struct {
	Status     string `json:"status" jsonschema:"stored, duplicate, or noise"`
	ID         string `json:"id,omitempty" jsonschema:"id of the newly stored record, when status is stored"`
	ExistingID string `json:"existing_id,omitempty" jsonschema:"id of the pre-existing near-duplicate record, when status is duplicate"`
	Message    string `json:"message,omitempty"`
}

// ForgetInput is the input schema for the forget tool.
type ForgetInput struct {
	Query    string `json:"query,omitempty" jsonschema:"a natural-language description of the memory to remove"`
	MemoryID string `json:"memory_id,omitempty" jsonschema:"exact id or unambiguous id prefix (>=8 hex chars) of the memory to remove"`
	Scope    string `json:"scope,omitempty" jsonschema:"restrict to a single accessible scope"`
}

// ForgetOutput is the output schema for the forget tool.
type ForgetOutput struct {
	Status     string         `json:"status" jsonschema:"deleted or needs_confirmation"`
	DeletedID  string         `json:"deleted_id,omitempty"`
	Candidates []RecallResult `json:"candidates,omitempty" jsonschema:"populated when needs_confirmation: call again with memory_id set to one of these"`
	Message    string         `json:"message,omitempty"`
}

// UpdateInput is the input schema for the update tool.
type UpdateInput struct {
	MemoryID   string   `json:"memory_id" jsonschema:"exact id, unambiguous id prefix, or a natural-language description to resolve via recall"`
	Text       string   `json:"text,omitempty" jsonschema:"replacement text; triggers re-embedding"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"replacement importance in [0,1]"`
	Category   string   `json:"category,omitempty" jsonschema:"replacement category"`
}

// UpdateOutput is the output schema for the update tool.
type UpdateOutput struct {
	Status string `json:"status" jsonschema:"updated or ambiguous"`
	ID     string `json:"id,omitempty"`
}

// StatsInput is the input schema for the stats tool.
type StatsInput struct {
	Scope string `json:"scope,omitempty" jsonschema:"restrict counts to a single accessible scope"`
}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Total      int            `json:"total"`
	ByScope    map[string]int `json:"by_scope"`
	ByCategory map[string]int `json:"by_category"`
}

// ListInput is the input schema for the list tool.
type ListInput struct {
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of records, default 20"`
	Scope    string `json:"scope,omitempty" jsonschema:"restrict to a single accessible scope"`
	Category string `json:"category,omitempty" jsonschema:"restrict to one category"`
	Offset   int    `json:"offset,omitempty" jsonschema:"pagination offset"`
}

// ListOutput is the output schema for the list tool.
type ListOutput struct {
	Records []ListRecord `json:"records"`
	Count   int          `json:"count"`
}

// ListRecord is a memory record summary without its vector.
type ListRecord struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Category   store.Category `json:"category"`
	Scope      string         `json:"scope"`
	Importance float64        `json:"importance"`
	Timestamp  int64          `json:"timestamp"`
}
