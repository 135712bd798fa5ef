package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty temp dir so a developer's
// own ~/.config/lawrag does not leak into tests.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return t.TempDir()
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 5, cfg.Search.TopN)
	assert.Equal(t, 20, cfg.Search.CandidateK)
	assert.Equal(t, "bleve", cfg.Search.KeywordBackend)
	assert.Equal(t, 0.8, cfg.Quality.Threshold)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxRewrites)
	assert.Equal(t, 5, cfg.WebSearch.MaxResults)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Judge)
	assert.True(t, cfg.Resilience.BreakerEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

// =============================================================================
// Layering
// =============================================================================

func TestLoad_ProjectFile_OverridesOnlyGivenKeys(t *testing.T) {
	dir := isolate(t)
	content := `
search:
  top_n: 8
quality:
  threshold: 0.75
timeouts:
  judge: 5s
websearch:
  provider: static
  static:
    - title: 国家法律法规数据库
      snippet: 民法典第一千零七十九条
      url: https://flk.npc.gov.cn
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Search.TopN)
	assert.Equal(t, 60, cfg.Search.RRFConstant, "untouched keys keep defaults")
	assert.Equal(t, 0.75, cfg.Quality.Threshold)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Judge)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Generation)
	require.Len(t, cfg.WebSearch.Static, 1)
	assert.Equal(t, "https://flk.npc.gov.cn", cfg.WebSearch.Static[0].URL)
}

func TestLoad_UserFileThenProjectFile(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "lawrag"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "lawrag", "config.yaml"),
		[]byte("search:\n  top_n: 7\n  rrf_constant: 30\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName),
		[]byte("search:\n  top_n: 4\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Search.TopN, "project beats user")
	assert.Equal(t, 30, cfg.Search.RRFConstant, "user beats default")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LAWRAG_QUALITY_THRESHOLD", "0.6")
	t.Setenv("LAWRAG_RRF_CONSTANT", "10")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("SERPAPI_API_KEY", "serp-test")
	t.Setenv("LAWRAG_KEYWORD_BACKEND", "sqlite")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Quality.Threshold)
	assert.Equal(t, 10, cfg.Search.RRFConstant)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "serp-test", cfg.WebSearch.APIKey)
	assert.Equal(t, "sqlite", cfg.Search.KeywordBackend)
}

func TestLoad_InvalidEnvValuesIgnored(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LAWRAG_QUALITY_THRESHOLD", "1.5")
	t.Setenv("LAWRAG_RRF_CONSTANT", "abc")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Quality.Threshold)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoad_ZeroThresholdRejected(t *testing.T) {
	// Given: a project file that sets the gate threshold to zero
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("quality:\n  threshold: 0\n"), 0o644))

	// When: loading
	_, err := Load(dir)

	// Then: it is rejected rather than replaced by the default later
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality.threshold")
}

func TestLoad_ZeroThresholdEnvIgnored(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LAWRAG_QUALITY_THRESHOLD", "0")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Quality.Threshold)
}

func TestLoad_MalformedYAML_ReturnsError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("search: [unclosed"), 0o644))

	_, err := Load(dir)

	assert.Error(t, err)
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold above one", func(c *Config) { c.Quality.Threshold = 1.2 }, "quality.threshold"},
		{"zero threshold", func(c *Config) { c.Quality.Threshold = 0 }, "quality.threshold"},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }, "rrf_constant"},
		{"candidate below top n", func(c *Config) { c.Search.CandidateK = 2 }, "candidate_k"},
		{"unknown backend", func(c *Config) { c.Search.KeywordBackend = "lucene" }, "keyword_backend"},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"zero timeout", func(c *Config) { c.Timeouts.Rerank = 0 }, "timeouts.rerank"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteYAML_RoundTripsDurationsAndOmitsKeys(t *testing.T) {
	dir := isolate(t)
	cfg := NewConfig()
	cfg.Search.TopN = 9
	cfg.LLM.APIKey = ""

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectFileName)))
	data, err := os.ReadFile(filepath.Join(dir, ProjectFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "api_key")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Search.TopN)
	assert.Equal(t, cfg.Timeouts, loaded.Timeouts)
}

func TestPaths_DerivedFromDataDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Corpus.DataDir = "/var/lib/lawrag"

	assert.Equal(t, "/var/lib/lawrag/documents.db", cfg.DocumentsPath())
	assert.Equal(t, "/var/lib/lawrag/keyword", cfg.KeywordIndexBase())
	assert.Equal(t, "/var/lib/lawrag/vectors.hnsw", cfg.VectorIndexPath())
	assert.Equal(t, "/var/lib/lawrag/telemetry.db", cfg.TelemetryPath())
}
