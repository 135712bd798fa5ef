package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = ".lawrag.yaml"

// Config represents the complete lawrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Quality    QualityConfig    `yaml:"quality" json:"quality"`
	WebSearch  WebSearchConfig  `yaml:"websearch" json:"websearch"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts" json:"timeouts"`
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
}

// CorpusConfig locates the statute file and the directory holding built indexes.
type CorpusConfig struct {
	// Path is the line-delimited law text (one article per line).
	Path string `yaml:"path" json:"path"`
	// DataDir holds documents.db, the keyword index and the vector index.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures hybrid retrieval.
// Fusion weights are not configured here: the classifier derives them per query.
type SearchConfig struct {
	// KeywordBackend selects the keyword index: "bleve" (default) or "sqlite".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`

	// CandidateK is how many hits each retrieval path returns before fusion.
	CandidateK int `yaml:"candidate_k" json:"candidate_k"`

	// TopN is the number of fused hits kept after fusion and reranking.
	TopN int `yaml:"top_n" json:"top_n"`

	// RRFConstant is the RRF damping constant k. Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxQueryLength is the longest accepted query, in runes.
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`

	ClassifierCacheSize int `yaml:"classifier_cache_size" json:"classifier_cache_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "openai" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BaseURL and APIKey are used by the OpenAI-compatible provider.
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" json:"-"`
}

// RerankerConfig configures the cross-encoder scoring service.
type RerankerConfig struct {
	// Provider is "http" or "none".
	Provider string `yaml:"provider" json:"provider"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// LLMConfig configures the chat model used for rewriting, judging and answering.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible API, DeepSeek by default) or "ollama".
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty" json:"-"`
	OllamaHost  string  `yaml:"ollama_host" json:"ollama_host"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	MaxRewrites int     `yaml:"max_rewrites" json:"max_rewrites"`
}

// QualityConfig configures the quality gate.
type QualityConfig struct {
	// Threshold is the pass ratio of total/40, in (0, 1]. Default: 0.8.
	Threshold float64 `yaml:"threshold" json:"threshold"`
	// MaxDocuments caps how many hits are shown to the judge.
	MaxDocuments int `yaml:"max_documents" json:"max_documents"`
}

// WebSearchConfig configures the fallback web search.
type WebSearchConfig struct {
	// Provider is "serpapi", "static" or "none".
	Provider      string  `yaml:"provider" json:"provider"`
	Endpoint      string  `yaml:"endpoint" json:"endpoint"`
	APIKey        string  `yaml:"api_key,omitempty" json:"-"`
	Engine        string  `yaml:"engine" json:"engine"`
	MaxResults    int     `yaml:"max_results" json:"max_results"`
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`

	// Static holds canned results for the "static" provider.
	Static []StaticResult `yaml:"static" json:"static"`
}

// StaticResult is one canned web result.
type StaticResult struct {
	Title   string `yaml:"title" json:"title"`
	Snippet string `yaml:"snippet" json:"snippet"`
	URL     string `yaml:"url" json:"url"`
}

// TimeoutsConfig bounds every collaborator call. A timeout counts as a failure.
type TimeoutsConfig struct {
	Embedding  time.Duration `yaml:"embedding" json:"embedding"`
	Rerank     time.Duration `yaml:"rerank" json:"rerank"`
	Judge      time.Duration `yaml:"judge" json:"judge"`
	Rewrite    time.Duration `yaml:"rewrite" json:"rewrite"`
	Generation time.Duration `yaml:"generation" json:"generation"`
	WebSearch  time.Duration `yaml:"websearch" json:"websearch"`
}

// ResilienceConfig configures the per-collaborator circuit breakers.
type ResilienceConfig struct {
	BreakerEnabled      bool          `yaml:"breaker_enabled" json:"breaker_enabled"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests" json:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio" json:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout" json:"breaker_open_timeout"`
}

// ServerConfig configures the MCP tool server and logging.
type ServerConfig struct {
	Transport   string `yaml:"transport" json:"transport"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

// TelemetryConfig configures the local run log.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Path defaults to <data_dir>/telemetry.db.
	Path string `yaml:"path" json:"path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			Path:    filepath.Join("data", "chinese_law.txt"),
			DataDir: ".lawrag",
		},
		Search: SearchConfig{
			KeywordBackend:      "bleve",
			CandidateK:          20,
			TopN:                5,
			RRFConstant:         60,
			MaxQueryLength:      512,
			ClassifierCacheSize: 1000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "bge-m3",
			Dimensions: 1024,
			BatchSize:  32,
			CacheSize:  1000,
			OllamaHost: "http://localhost:11434",
		},
		Reranker: RerankerConfig{
			Provider: "http",
			Endpoint: "http://localhost:9659",
			Model:    "cross-encoder/ms-marco-MiniLM-L-6-v2",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "deepseek-chat",
			BaseURL:     "https://api.deepseek.com/v1",
			OllamaHost:  "http://localhost:11434",
			Temperature: 0.1,
			MaxRewrites: 3,
		},
		Quality: QualityConfig{
			Threshold:    0.8,
			MaxDocuments: 5,
		},
		WebSearch: WebSearchConfig{
			Provider:      "serpapi",
			Endpoint:      "https://serpapi.com/search.json",
			Engine:        "google",
			MaxResults:    5,
			RatePerSecond: 1,
		},
		Timeouts: TimeoutsConfig{
			Embedding:  10 * time.Second,
			Rerank:     15 * time.Second,
			Judge:      30 * time.Second,
			Rewrite:    20 * time.Second,
			Generation: 60 * time.Second,
			WebSearch:  10 * time.Second,
		},
		Resilience: ResilienceConfig{
			BreakerEnabled:      true,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
			BreakerOpenTimeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
//   - $XDG_CONFIG_HOME/lawrag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/lawrag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lawrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "lawrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "lawrag", "config.yaml")
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/lawrag/config.yaml)
//  3. Project config (.lawrag.yaml in dir)
//  4. Environment variables (LAWRAG_*, plus DEEPSEEK_API_KEY and SERPAPI_API_KEY)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	projectPath := filepath.Join(dir, ProjectFileName)
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the file
// keep whatever an earlier layer set.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies LAWRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LAWRAG_CORPUS_PATH"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv("LAWRAG_DATA_DIR"); v != "" {
		c.Corpus.DataDir = v
	}
	if v := os.Getenv("LAWRAG_KEYWORD_BACKEND"); v != "" {
		c.Search.KeywordBackend = v
	}
	if v := os.Getenv("LAWRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("LAWRAG_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.TopN = n
		}
	}
	if v := os.Getenv("LAWRAG_QUALITY_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && t > 0 && t <= 1 {
			c.Quality.Threshold = t
		}
	}

	if v := os.Getenv("LAWRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("LAWRAG_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LAWRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("LAWRAG_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}

	if v := os.Getenv("LAWRAG_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LAWRAG_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	// DEEPSEEK_API_KEY is honored for compatibility with existing deployments.
	if v := firstEnv("LAWRAG_LLM_API_KEY", "DEEPSEEK_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := firstEnv("LAWRAG_EMBEDDINGS_API_KEY", "OPENAI_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}

	if v := os.Getenv("LAWRAG_WEBSEARCH_PROVIDER"); v != "" {
		c.WebSearch.Provider = v
	}
	if v := firstEnv("LAWRAG_SERPAPI_KEY", "SERPAPI_API_KEY"); v != "" {
		c.WebSearch.APIKey = v
	}

	if v := os.Getenv("LAWRAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("LAWRAG_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("LAWRAG_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Quality.Threshold <= 0 || c.Quality.Threshold > 1 {
		return fmt.Errorf("quality.threshold must be in (0, 1], got %f", c.Quality.Threshold)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.TopN <= 0 {
		return fmt.Errorf("search.top_n must be positive, got %d", c.Search.TopN)
	}
	if c.Search.CandidateK < c.Search.TopN {
		return fmt.Errorf("search.candidate_k (%d) must be at least search.top_n (%d)", c.Search.CandidateK, c.Search.TopN)
	}
	if c.Search.MaxQueryLength <= 0 {
		return fmt.Errorf("search.max_query_length must be positive, got %d", c.Search.MaxQueryLength)
	}

	if err := oneOf("search.keyword_backend", c.Search.KeywordBackend, "bleve", "sqlite"); err != nil {
		return err
	}
	if err := oneOf("embeddings.provider", c.Embeddings.Provider, "ollama", "openai", "static"); err != nil {
		return err
	}
	if err := oneOf("reranker.provider", c.Reranker.Provider, "http", "none"); err != nil {
		return err
	}
	if err := oneOf("llm.provider", c.LLM.Provider, "openai", "ollama"); err != nil {
		return err
	}
	if err := oneOf("websearch.provider", c.WebSearch.Provider, "serpapi", "static", "none"); err != nil {
		return err
	}
	if err := oneOf("server.transport", c.Server.Transport, "stdio"); err != nil {
		return err
	}
	if err := oneOf("server.log_level", c.Server.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.WebSearch.MaxResults < 0 {
		return fmt.Errorf("websearch.max_results must be non-negative, got %d", c.WebSearch.MaxResults)
	}

	timeouts := map[string]time.Duration{
		"timeouts.embedding":  c.Timeouts.Embedding,
		"timeouts.rerank":     c.Timeouts.Rerank,
		"timeouts.judge":      c.Timeouts.Judge,
		"timeouts.rewrite":    c.Timeouts.Rewrite,
		"timeouts.generation": c.Timeouts.Generation,
		"timeouts.websearch":  c.Timeouts.WebSearch,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// DocumentsPath returns the document store location.
func (c *Config) DocumentsPath() string {
	return filepath.Join(c.Corpus.DataDir, "documents.db")
}

// KeywordIndexBase returns the keyword index base path; the backend adds its extension.
func (c *Config) KeywordIndexBase() string {
	return filepath.Join(c.Corpus.DataDir, "keyword")
}

// VectorIndexPath returns the HNSW graph location.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Corpus.DataDir, "vectors.hnsw")
}

// TelemetryPath returns the run log location.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return filepath.Join(c.Corpus.DataDir, "telemetry.db")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
