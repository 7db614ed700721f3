package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteMemoryStore implements MemoryStore over a SQLite table, with vector
// search delegated to a VectorStore and lexical search delegated to a
// BM25Index. It owns the lifecycle of both secondary indexes: writes land in
// all three in lockstep so they never drift apart.
type SQLiteMemoryStore struct {
	mu sync.RWMutex

	db         *sql.DB
	vector     VectorStore
	bm25       BM25Index
	dimensions int

	dataDir    string
	vectorPath string
	bm25Path   string

	closed bool
}

// MemoryStoreConfig bundles the knobs needed to open a SQLiteMemoryStore.
type MemoryStoreConfig struct {
	// DataDir is the directory holding memories.db, vectors.hnsw, and the
	// BM25 index. Created on first use if missing.
	DataDir string

	// VectorConfig configures the HNSW vector index dimensions and metric.
	VectorConfig VectorStoreConfig

	// BM25Config configures the lexical index.
	BM25Config BM25Config

	// BM25Backend selects "sqlite" (default) or "bleve".
	BM25Backend string
}

// OpenMemoryStore opens (creating if necessary) a SQLite-backed memory store
// at cfg.DataDir, along with its vector and BM25 sibling indexes.
func OpenMemoryStore(cfg MemoryStoreConfig) (*SQLiteMemoryStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "memories.db")
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open memories database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteMemoryStore{
		db:      db,
		dataDir: cfg.DataDir,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	vectorPath := filepath.Join(cfg.DataDir, "vectors.hnsw")
	vectorStore, err := NewHNSWStore(cfg.VectorConfig)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vectorStore.Load(vectorPath); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load vector store: %w", err)
		}
	}
	s.vector = vectorStore
	s.vectorPath = vectorPath
	s.dimensions = cfg.VectorConfig.Dimensions

	bm25BasePath := filepath.Join(cfg.DataDir, "bm25")
	bm25Index, err := NewBM25IndexWithBackend(bm25BasePath, cfg.BM25Config, cfg.BM25Backend)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bm25 index: %w", err)
	}
	s.bm25 = bm25Index
	s.bm25Path = bm25BasePath

	return s, nil
}

func (s *SQLiteMemoryStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		vector     BLOB NOT NULL,
		category   TEXT NOT NULL,
		scope      TEXT NOT NULL,
		importance REAL NOT NULL,
		timestamp  INTEGER NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope);
	CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
	CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Verify interface implementation at compile time.
var _ MemoryStore = (*SQLiteMemoryStore)(nil)

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func (s *SQLiteMemoryStore) insertRow(ctx context.Context, r MemoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories(id, text, vector, category, scope, importance, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Text, encodeVector(r.Vector), string(r.Category), r.Scope, r.Importance, r.Timestamp, r.Metadata)
	return err
}

func (s *SQLiteMemoryStore) indexRecord(ctx context.Context, r MemoryRecord) error {
	// An empty vector (an import awaiting re-embedding) stays out of the
	// ANN index; the record is still reachable by id, list, and BM25.
	if len(r.Vector) > 0 {
		if err := s.vector.Add(ctx, []string{r.ID}, [][]float32{r.Vector}); err != nil {
			return fmt.Errorf("index vector: %w", err)
		}
	}
	if err := s.bm25.Index(ctx, []*BM25Document{{ID: r.ID, Content: r.Text}}); err != nil {
		return fmt.Errorf("index text: %w", err)
	}
	return nil
}

// Store inserts a newly created record, writing it to the row table and both
// secondary indexes.
func (s *SQLiteMemoryStore) Store(ctx context.Context, record MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if len(record.Vector) != s.dimensions {
		return ErrDimensionMismatch{
			Expected: s.dimensions,
			Got:      len(record.Vector),
		}
	}

	if err := s.insertRow(ctx, record); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return s.indexRecord(ctx, record)
}

// ImportEntry inserts a fully-formed record without noise-filtering or
// duplicate-detection, skipping records whose id already exists.
func (s *SQLiteMemoryStore) ImportEntry(ctx context.Context, record MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if len(record.Vector) > 0 && len(record.Vector) != s.dimensions {
		return ErrDimensionMismatch{
			Expected: s.dimensions,
			Got:      len(record.Vector),
		}
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE id = ?`, record.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check existing id: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if err := s.insertRow(ctx, record); err != nil {
		return fmt.Errorf("insert imported record: %w", err)
	}
	return s.indexRecord(ctx, record)
}

// HasID reports whether a record with the given exact id exists.
func (s *SQLiteMemoryStore) HasID(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("query id: %w", err)
	}
	return count > 0, nil
}

// vectorOverfetch bounds how far vectorSearch looks past limit so a scope
// filter still leaves a useful candidate pool after post-filtering.
const vectorOverfetchFactor = 10
const vectorOverfetchCap = 200

// VectorSearch runs ANN search over the vector index and hydrates full
// records for the hits that survive the scope filter.
func (s *SQLiteMemoryStore) VectorSearch(ctx context.Context, vector []float32, limit int, minScore float64, scopeFilter []string) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		return nil, nil
	}

	fetchK := limit * vectorOverfetchFactor
	if fetchK > vectorOverfetchCap {
		fetchK = vectorOverfetchCap
	}
	if fetchK < limit {
		fetchK = limit
	}

	hits, err := s.vector.Search(ctx, vector, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	scopeSet := toScopeSet(scopeFilter)
	out := make([]ScoredRecord, 0, limit)
	for _, hit := range hits {
		if len(out) >= limit {
			break
		}
		if float64(hit.Score) < minScore {
			continue
		}
		rec, ok, err := s.loadRecord(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !scopeAllowed(rec.Scope, scopeSet) {
			continue
		}
		out = append(out, ScoredRecord{Record: rec, Score: float64(hit.Score)})
	}
	return out, nil
}

// bm25SigmoidScale is the divisor in the sigmoid used to squash raw BM25
// scores into [0, 1] for fusion with vector scores.
const bm25SigmoidScale = 5.0

func bm25Normalize(raw float64) float64 {
	if raw == 0 {
		return 0.5
	}
	return 1.0 / (1.0 + math.Exp(-raw/bm25SigmoidScale))
}

// BM25Search runs a full-text query and hydrates matching records, applying
// the same scope filter semantics as VectorSearch.
func (s *SQLiteMemoryStore) BM25Search(ctx context.Context, query string, limit int, scopeFilter []string) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		return nil, nil
	}

	fetchK := limit * vectorOverfetchFactor
	if fetchK > vectorOverfetchCap {
		fetchK = vectorOverfetchCap
	}
	if fetchK < limit {
		fetchK = limit
	}

	hits, err := s.bm25.Search(ctx, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	scopeSet := toScopeSet(scopeFilter)
	out := make([]ScoredRecord, 0, limit)
	for _, hit := range hits {
		if len(out) >= limit {
			break
		}
		rec, ok, err := s.loadRecord(ctx, hit.DocID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !scopeAllowed(rec.Scope, scopeSet) {
			continue
		}
		out = append(out, ScoredRecord{Record: rec, Score: bm25Normalize(hit.Score)})
	}
	return out, nil
}

// HasFTSSupport reports whether the lexical index is usable. The SQLite and
// Bleve backends are both always available once opened; this is false only
// after Close, when BM25Search returns a "store is closed" error.
func (s *SQLiteMemoryStore) HasFTSSupport() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.bm25 != nil
}

func (s *SQLiteMemoryStore) loadRecord(ctx context.Context, id string) (MemoryRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, vector, category, scope, importance, timestamp, metadata
		FROM memories WHERE id = ?`, id)

	var r MemoryRecord
	var vec []byte
	var category string
	if err := row.Scan(&r.ID, &r.Text, &vec, &category, &r.Scope, &r.Importance, &r.Timestamp, &r.Metadata); err != nil {
		if err == sql.ErrNoRows {
			return MemoryRecord{}, false, nil
		}
		return MemoryRecord{}, false, fmt.Errorf("scan record %s: %w", id, err)
	}
	r.Category = Category(category)
	r.Vector = decodeVector(vec)
	return r, true, nil
}

// resolveIDOrPrefix finds the single record matching a full id or an
// unambiguous hex prefix, honoring the scope filter. Returns an error
// identifying ambiguity or absence.
func (s *SQLiteMemoryStore) resolveIDOrPrefix(ctx context.Context, idOrPrefix string, scopeFilter []string) (MemoryRecord, error) {
	if len(idOrPrefix) < minPrefixLen {
		return MemoryRecord{}, fmt.Errorf("id or prefix must be at least %d characters", minPrefixLen)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memories`)
	if err != nil {
		return MemoryRecord{}, fmt.Errorf("list ids: %w", err)
	}
	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return MemoryRecord{}, fmt.Errorf("scan id: %w", err)
		}
		if matchesIDOrPrefix(id, idOrPrefix) {
			matches = append(matches, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return MemoryRecord{}, fmt.Errorf("iterate ids: %w", err)
	}

	if len(matches) == 0 {
		return MemoryRecord{}, fmt.Errorf("no record matches %q", idOrPrefix)
	}
	if len(matches) > 1 {
		return MemoryRecord{}, fmt.Errorf("%d records match prefix %q, supply more characters", len(matches), idOrPrefix)
	}

	rec, ok, err := s.loadRecord(ctx, matches[0])
	if err != nil {
		return MemoryRecord{}, err
	}
	if !ok {
		return MemoryRecord{}, fmt.Errorf("no record matches %q", idOrPrefix)
	}

	if len(scopeFilter) > 0 && !scopeAllowed(rec.Scope, toScopeSet(scopeFilter)) {
		return MemoryRecord{}, fmt.Errorf("record %s is not in an accessible scope", rec.ID)
	}
	return rec, nil
}

// Get resolves idOrPrefix to its complete record, honoring scopeFilter.
func (s *SQLiteMemoryStore) Get(ctx context.Context, idOrPrefix string, scopeFilter []string) (MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return MemoryRecord{}, fmt.Errorf("store is closed")
	}
	return s.resolveIDOrPrefix(ctx, idOrPrefix, scopeFilter)
}

// Delete removes the record addressed by idOrPrefix from the row table and
// both secondary indexes.
func (s *SQLiteMemoryStore) Delete(ctx context.Context, idOrPrefix string, scopeFilter []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	rec, err := s.resolveIDOrPrefix(ctx, idOrPrefix, scopeFilter)
	if err != nil {
		return err
	}
	return s.deleteRecord(ctx, rec.ID)
}

func (s *SQLiteMemoryStore) deleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if err := s.vector.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if err := s.bm25.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete bm25 doc: %w", err)
	}
	return nil
}

// Update replaces the content of the record addressed by idOrPrefix, keeping
// its id and timestamp. Implemented as delete-then-insert so concurrent
// readers see either the full old record or the full new one.
func (s *SQLiteMemoryStore) Update(ctx context.Context, idOrPrefix string, updated MemoryRecord, scopeFilter []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	existing, err := s.resolveIDOrPrefix(ctx, idOrPrefix, scopeFilter)
	if err != nil {
		return err
	}

	next := updated
	next.ID = existing.ID
	next.Timestamp = existing.Timestamp

	if err := s.deleteRecord(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete previous version: %w", err)
	}
	if err := s.insertRow(ctx, next); err != nil {
		return fmt.Errorf("insert updated version: %w", err)
	}
	return s.indexRecord(ctx, next)
}

// List returns summaries matching the scope and optional category filters,
// ordered newest first.
func (s *SQLiteMemoryStore) List(ctx context.Context, scopeFilter []string, category Category, offset, limit int) ([]MemoryRecordSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := `SELECT id, text, category, scope, importance, timestamp, metadata FROM memories WHERE 1=1`
	var args []any

	if len(scopeFilter) > 0 {
		placeholders := make([]string, len(scopeFilter))
		for i, sc := range scopeFilter {
			placeholders[i] = "?"
			args = append(args, sc)
		}
		query += fmt.Sprintf(" AND scope IN (%s)", joinPlaceholders(placeholders))
	}
	if category != "" {
		query += " AND category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var out []MemoryRecordSummary
	for rows.Next() {
		var r MemoryRecordSummary
		var cat string
		if err := rows.Scan(&r.ID, &r.Text, &cat, &r.Scope, &r.Importance, &r.Timestamp, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		r.Category = Category(cat)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns total and per-scope/per-category counts, optionally narrowed
// by a scope filter applied before counting.
func (s *SQLiteMemoryStore) Stats(ctx context.Context, scopeFilter []string) (MemoryStoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return MemoryStoreStats{}, fmt.Errorf("store is closed")
	}

	where := ""
	var args []any
	if len(scopeFilter) > 0 {
		placeholders := make([]string, len(scopeFilter))
		for i, sc := range scopeFilter {
			placeholders[i] = "?"
			args = append(args, sc)
		}
		where = fmt.Sprintf(" WHERE scope IN (%s)", joinPlaceholders(placeholders))
	}

	stats := MemoryStoreStats{ByScope: map[string]int{}, ByCategory: map[Category]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories"+where, args...).Scan(&stats.Total); err != nil {
		return MemoryStoreStats{}, fmt.Errorf("count total: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT scope, COUNT(*) FROM memories"+where+" GROUP BY scope", args...)
	if err != nil {
		return MemoryStoreStats{}, fmt.Errorf("count by scope: %w", err)
	}
	for rows.Next() {
		var scope string
		var n int
		if err := rows.Scan(&scope, &n); err != nil {
			rows.Close()
			return MemoryStoreStats{}, fmt.Errorf("scan scope count: %w", err)
		}
		stats.ByScope[scope] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return MemoryStoreStats{}, err
	}

	rows, err = s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM memories"+where+" GROUP BY category", args...)
	if err != nil {
		return MemoryStoreStats{}, fmt.Errorf("count by category: %w", err)
	}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			rows.Close()
			return MemoryStoreStats{}, fmt.Errorf("scan category count: %w", err)
		}
		stats.ByCategory[Category(cat)] = n
	}
	rows.Close()
	return stats, rows.Err()
}

// BulkDelete removes every record matching scopeFilter and/or
// beforeTimestamp. At least one constraint is required; an unconditional
// delete-all is rejected.
func (s *SQLiteMemoryStore) BulkDelete(ctx context.Context, scopeFilter []string, beforeTimestamp int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if len(scopeFilter) == 0 && beforeTimestamp <= 0 {
		return 0, fmt.Errorf("bulkDelete requires a scope filter or a beforeTimestamp bound")
	}

	query := `SELECT id FROM memories WHERE 1=1`
	var args []any
	if len(scopeFilter) > 0 {
		placeholders := make([]string, len(scopeFilter))
		for i, sc := range scopeFilter {
			placeholders[i] = "?"
			args = append(args, sc)
		}
		query += fmt.Sprintf(" AND scope IN (%s)", joinPlaceholders(placeholders))
	}
	if beforeTimestamp > 0 {
		query += " AND timestamp < ?"
		args = append(args, beforeTimestamp)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("select for bulk delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan id for bulk delete: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.deleteRecord(ctx, id); err != nil {
			return 0, fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// Close persists both secondary indexes and releases database resources.
func (s *SQLiteMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.vector.Save(s.vectorPath); err != nil {
		firstErr = fmt.Errorf("save vector store: %w", err)
	}
	if err := s.vector.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close vector store: %w", err)
	}
	if err := s.bm25.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close bm25 index: %w", err)
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close database: %w", err)
	}
	return firstErr
}

func toScopeSet(scopeFilter []string) map[string]struct{} {
	if len(scopeFilter) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(scopeFilter))
	for _, sc := range scopeFilter {
		set[sc] = struct{}{}
	}
	return set
}

func scopeAllowed(scope string, scopeSet map[string]struct{}) bool {
	if scopeSet == nil {
		return true
	}
	_, ok := scopeSet[scope]
	return ok
}

func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// marshalMetadata encodes an arbitrary metadata map to the JSON string stored
// in MemoryRecord.Metadata, defaulting to "{}" for a nil map.
func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
