// Package config loads and validates the hybrid memory core's process-wide
// configuration: where records are persisted, how they're embedded, how
// retrieval is tuned, and which scopes exist.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/hybridmem/internal/retriever"
	"github.com/Aman-CERP/hybridmem/internal/scope"
)

// Config is the complete configuration for the memory core.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Scopes     scope.Config     `yaml:"scopes" json:"scopes"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StoreConfig configures the persistence layer: where the SQLite metadata
// table, HNSW vector index, and BM25 index live on disk.
type StoreConfig struct {
	// DataDir holds memories.db, vectors.hnsw, and the BM25 index.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// BM25Backend selects "sqlite" (default, concurrent access) or
	// "bleve" (legacy, single-process).
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	// Quantization names the HNSW vector precision: "f32", "f16", "i8".
	// It is loaded, merged and written, but hybridmemctl opens the vector
	// store with store.DefaultVectorStoreConfig ("f16") and does not read it.
	Quantization string `yaml:"quantization" json:"quantization"`

	// Metric names the HNSW distance metric: "cos" or "l2". Like
	// Quantization, it is not passed to the vector store, which uses "cos".
	Metric string `yaml:"metric" json:"metric"`
}

// EmbeddingsConfig configures the remote embedding provider.
type EmbeddingsConfig struct {
	// Provider selects "voyage", "openai", "jina", or "static". Empty
	// defers to the HYBRIDMEM_EMBEDDER environment variable, falling
	// back to "static".
	Provider string `yaml:"provider" json:"provider"`

	Model      string        `yaml:"model" json:"model"`
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"` // OpenAI truncation override only
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	// CacheDisabled records whether the query/passage LRU+TTL cache is off;
	// HYBRIDMEM_EMBED_CACHE sets it. The embedder factory does not read this
	// field: it skips the cache only when HYBRIDMEM_EMBED_CACHE itself says
	// so, so setting cache_disabled in a file alone leaves the cache on.
	CacheDisabled bool `yaml:"cache_disabled" json:"cache_disabled"`
}

// RetrievalConfig mirrors retriever.Config with yaml/json tags for file and
// environment-variable configuration.
type RetrievalConfig struct {
	Mode string `yaml:"mode" json:"mode"`

	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`
	BM25Weight   float64 `yaml:"bm25_weight" json:"bm25_weight"`

	MinScore     float64 `yaml:"min_score" json:"min_score"`
	HardMinScore float64 `yaml:"hard_min_score" json:"hard_min_score"`

	Rerank      string `yaml:"rerank" json:"rerank"`
	RerankModel string `yaml:"rerank_model" json:"rerank_model"`

	CandidatePoolSize int `yaml:"candidate_pool_size" json:"candidate_pool_size"`

	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days" json:"recency_half_life_days"`
	RecencyWeight       float64 `yaml:"recency_weight" json:"recency_weight"`

	LengthNormAnchor int `yaml:"length_norm_anchor" json:"length_norm_anchor"`

	TimeDecayHalfLifeDays float64 `yaml:"time_decay_half_life_days" json:"time_decay_half_life_days"`

	FilterNoise bool `yaml:"filter_noise" json:"filter_noise"`
}

// ToEngineConfig converts r to the retriever package's runtime Config.
func (r RetrievalConfig) ToEngineConfig() retriever.Config {
	return retriever.Config{
		Mode:                  retriever.Mode(r.Mode),
		VectorWeight:          r.VectorWeight,
		BM25Weight:            r.BM25Weight,
		MinScore:              r.MinScore,
		HardMinScore:          r.HardMinScore,
		Rerank:                retriever.RerankMode(r.Rerank),
		RerankModel:           r.RerankModel,
		CandidatePoolSize:     r.CandidatePoolSize,
		RecencyHalfLifeDays:   r.RecencyHalfLifeDays,
		RecencyWeight:         r.RecencyWeight,
		LengthNormAnchor:      r.LengthNormAnchor,
		TimeDecayHalfLifeDays: r.TimeDecayHalfLifeDays,
		FilterNoise:           r.FilterNoise,
	}
}

// RerankConfig configures the cross-encoder reranker. The reranker base URL
// is fixed to Voyage's rerank endpoint regardless of which provider supplied
// embeddings; reranking with another embedding provider needs a Voyage key.
type RerankConfig struct {
	// Provider selects "voyage" or "none". Rerank mode is independently
	// controlled by Retrieval.Rerank ("cross-encoder"/"lightweight"/
	// "none"); this field only matters when that is "cross-encoder".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// ServerConfig configures the MCP server transport.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config with sensible defaults: a static (no-network)
// embedder, hybrid retrieval with a lightweight rerank fallback, and a
// single "global" scope accessible to every agent.
func NewConfig() *Config {
	retrievalDefaults := retriever.DefaultConfig()
	return &Config{
		Version: 1,
		Store: StoreConfig{
			DataDir:      defaultDataDir(),
			BM25Backend:  "sqlite",
			Quantization: "f16",
			Metric:       "cos",
		},
		Embeddings: EmbeddingsConfig{
			Provider: "static",
			Model:    "",
			Timeout:  30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Mode:                  string(retrievalDefaults.Mode),
			VectorWeight:          retrievalDefaults.VectorWeight,
			BM25Weight:            retrievalDefaults.BM25Weight,
			MinScore:              retrievalDefaults.MinScore,
			HardMinScore:          retrievalDefaults.HardMinScore,
			Rerank:                string(retrievalDefaults.Rerank),
			RerankModel:           retrievalDefaults.RerankModel,
			CandidatePoolSize:     retrievalDefaults.CandidatePoolSize,
			RecencyHalfLifeDays:   retrievalDefaults.RecencyHalfLifeDays,
			RecencyWeight:         retrievalDefaults.RecencyWeight,
			LengthNormAnchor:      retrievalDefaults.LengthNormAnchor,
			TimeDecayHalfLifeDays: retrievalDefaults.TimeDecayHalfLifeDays,
			FilterNoise:           retrievalDefaults.FilterNoise,
		},
		Scopes: scope.DefaultConfig(),
		Rerank: RerankConfig{
			Provider: "voyage",
			Model:    "rerank-2",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".hybridmem", "data")
	}
	return filepath.Join(home, ".hybridmem", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hybridmem", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "hybridmem", "config.yaml")
	}
	return filepath.Join(home, ".config", "hybridmem", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user/global configuration file. Returns a nil
// config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for dir in order of increasing precedence:
// hardcoded defaults, user/global config, project config (.hybridmem.yaml
// in dir), then HYBRIDMEM_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .hybridmem.yaml or
// .hybridmem.yml in dir. No file present is fine; defaults stand.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".hybridmem.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".hybridmem.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges other's non-zero values into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.DataDir != "" {
		c.Store.DataDir = other.Store.DataDir
	}
	if other.Store.BM25Backend != "" {
		c.Store.BM25Backend = other.Store.BM25Backend
	}
	if other.Store.Quantization != "" {
		c.Store.Quantization = other.Store.Quantization
	}
	if other.Store.Metric != "" {
		c.Store.Metric = other.Store.Metric
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheDisabled {
		c.Embeddings.CacheDisabled = other.Embeddings.CacheDisabled
	}

	if other.Retrieval.Mode != "" {
		c.Retrieval.Mode = other.Retrieval.Mode
	}
	if other.Retrieval.VectorWeight != 0 {
		c.Retrieval.VectorWeight = other.Retrieval.VectorWeight
	}
	if other.Retrieval.BM25Weight != 0 {
		c.Retrieval.BM25Weight = other.Retrieval.BM25Weight
	}
	if other.Retrieval.MinScore != 0 {
		c.Retrieval.MinScore = other.Retrieval.MinScore
	}
	if other.Retrieval.HardMinScore != 0 {
		c.Retrieval.HardMinScore = other.Retrieval.HardMinScore
	}
	if other.Retrieval.Rerank != "" {
		c.Retrieval.Rerank = other.Retrieval.Rerank
	}
	if other.Retrieval.RerankModel != "" {
		c.Retrieval.RerankModel = other.Retrieval.RerankModel
	}
	if other.Retrieval.CandidatePoolSize != 0 {
		c.Retrieval.CandidatePoolSize = other.Retrieval.CandidatePoolSize
	}
	if other.Retrieval.RecencyHalfLifeDays != 0 {
		c.Retrieval.RecencyHalfLifeDays = other.Retrieval.RecencyHalfLifeDays
	}
	if other.Retrieval.RecencyWeight != 0 {
		c.Retrieval.RecencyWeight = other.Retrieval.RecencyWeight
	}
	if other.Retrieval.LengthNormAnchor != 0 {
		c.Retrieval.LengthNormAnchor = other.Retrieval.LengthNormAnchor
	}
	if other.Retrieval.TimeDecayHalfLifeDays != 0 {
		c.Retrieval.TimeDecayHalfLifeDays = other.Retrieval.TimeDecayHalfLifeDays
	}
	if other.Retrieval.FilterNoise {
		c.Retrieval.FilterNoise = other.Retrieval.FilterNoise
	}

	if other.Scopes.Default != "" {
		c.Scopes.Default = other.Scopes.Default
	}
	if len(other.Scopes.Definitions) > 0 {
		c.Scopes.Definitions = other.Scopes.Definitions
	}
	if len(other.Scopes.AgentAccess) > 0 {
		c.Scopes.AgentAccess = other.Scopes.AgentAccess
	}

	if other.Rerank.Provider != "" {
		c.Rerank.Provider = other.Rerank.Provider
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies HYBRIDMEM_* environment variable overrides,
// the highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HYBRIDMEM_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("HYBRIDMEM_BM25_BACKEND"); v != "" {
		c.Store.BM25Backend = v
	}

	if v := os.Getenv("HYBRIDMEM_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("HYBRIDMEM_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("HYBRIDMEM_EMBED_CACHE"); v != "" {
		lower := strings.ToLower(v)
		c.Embeddings.CacheDisabled = lower == "false" || lower == "0" || lower == "off" || lower == "disabled"
	}

	if v := os.Getenv("HYBRIDMEM_RETRIEVAL_MODE"); v != "" {
		c.Retrieval.Mode = v
	}
	if v := os.Getenv("HYBRIDMEM_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.VectorWeight = w
		}
	}
	if v := os.Getenv("HYBRIDMEM_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.BM25Weight = w
		}
	}
	if v := os.Getenv("HYBRIDMEM_RERANK"); v != "" {
		c.Retrieval.Rerank = v
	}

	if v := os.Getenv("HYBRIDMEM_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("HYBRIDMEM_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("HYBRIDMEM_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the configuration for internal consistency, enforcing
// the invariants SPEC_FULL §A.3 assigns to Config.Validate(): the fusion
// weights are sane, and mode/rerank are one of the enumerated values.
func (c *Config) Validate() error {
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.VectorWeight > 1 {
		return fmt.Errorf("retrieval.vector_weight must be between 0 and 1, got %f", c.Retrieval.VectorWeight)
	}
	if c.Retrieval.BM25Weight < 0 || c.Retrieval.BM25Weight > 1 {
		return fmt.Errorf("retrieval.bm25_weight must be between 0 and 1, got %f", c.Retrieval.BM25Weight)
	}
	if sum := c.Retrieval.VectorWeight + c.Retrieval.BM25Weight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("retrieval.vector_weight + retrieval.bm25_weight must equal 1.0, got %.2f", sum)
	}

	switch c.Retrieval.Mode {
	case string(retriever.ModeHybrid), string(retriever.ModeVector):
	default:
		return fmt.Errorf("retrieval.mode must be 'hybrid' or 'vector', got %q", c.Retrieval.Mode)
	}

	switch c.Retrieval.Rerank {
	case string(retriever.RerankCrossEncoder), string(retriever.RerankLightweight), string(retriever.RerankNone):
	default:
		return fmt.Errorf("retrieval.rerank must be 'cross-encoder', 'lightweight', or 'none', got %q", c.Retrieval.Rerank)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"voyage": true, "openai": true, "jina": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'voyage', 'openai', 'jina', or 'static', got %q", c.Embeddings.Provider)
		}
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %q", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults fills in zero-valued fields added to Config since c was
// written, returning the dotted field names that were added. `config init
// --force` does not call it: it backs up the existing file and writes a
// fresh default configuration in its place.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Retrieval.CandidatePoolSize == 0 {
		c.Retrieval.CandidatePoolSize = defaults.Retrieval.CandidatePoolSize
		added = append(added, "retrieval.candidate_pool_size")
	}
	if c.Retrieval.LengthNormAnchor == 0 {
		c.Retrieval.LengthNormAnchor = defaults.Retrieval.LengthNormAnchor
		added = append(added, "retrieval.length_norm_anchor")
	}
	if c.Store.Quantization == "" {
		c.Store.Quantization = defaults.Store.Quantization
		added = append(added, "store.quantization")
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = defaults.Rerank.Model
		added = append(added, "rerank.model")
	}

	return added
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
