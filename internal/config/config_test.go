package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "json", cfg.Cache.Backend)
	assert.Equal(t, "rename_cache.json", cfg.Cache.Path)
	assert.Equal(t, "jina", cfg.Search.Provider)
	assert.InDelta(t, 1.0, cfg.Search.RequestsPerSecond, 0.001)
	assert.Equal(t, 3, cfg.Search.Resilience.MaxAttempts)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "jp", cfg.Jina.Country)
	assert.Equal(t, "ja-JP", cfg.Bing.Market)
	assert.Equal(t, 30, cfg.Browser.PageTimeoutSecs)
	assert.True(t, cfg.Fetch.Enabled)
	assert.Equal(t, []string{"local", "jina"}, cfg.Fetch.Scrapers)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentCompanies)
	assert.Equal(t, 3*time.Minute, cfg.Batch.CompanyTimeout())
	assert.Equal(t, `"{name}" 社名変更 OR 商号変更 OR 新社名`, cfg.Pipeline.QueryTemplate)
	assert.Equal(t, 160, cfg.Pipeline.ExcerptRunes)
	assert.Empty(t, cfg.Rules.Path)
	assert.Equal(t, 8080, cfg.Server.Port)

	require.NoError(t, cfg.Validate("check"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
cache:
  backend: sqlite
  path: records.db
search:
  provider: bing
  resilience:
    max_attempts: 5
batch:
  max_concurrent_companies: 8
pipeline:
  require_corroboration: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "records.db", cfg.Cache.Path)
	assert.Equal(t, "bing", cfg.Search.Provider)
	assert.Equal(t, 5, cfg.Search.Resilience.MaxAttempts)
	assert.Equal(t, 30000, cfg.Search.Resilience.MaxBackoffMs)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentCompanies)
	assert.True(t, cfg.Pipeline.RequireCorroboration)
	// Defaults still apply for unset values
	assert.Equal(t, 180, cfg.Batch.CompanyTimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("RENAME_LOG_LEVEL", "warn")
	t.Setenv("RENAME_JINA_KEY", "jina_test_key")
	t.Setenv("RENAME_BATCH_MAX_CONCURRENT_COMPANIES", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "jina_test_key", cfg.Jina.Key)
	assert.Equal(t, 6, cfg.Batch.MaxConcurrentCompanies)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Cache.Backend = "json"
	cfg.Cache.Path = "cache.json"
	cfg.Search.Provider = "jina"
	cfg.Batch.MaxConcurrentCompanies = 3
	cfg.Pipeline.QueryTemplate = "{name} 社名変更"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid check", "check", func(*Config) {}, ""},
		{"valid serve", "serve", func(*Config) {}, ""},
		{"cache mode ignores search", "cache", func(c *Config) { c.Search.Provider = "" }, ""},
		{"unknown mode", "deploy", func(*Config) {}, "unknown mode"},
		{"bad backend", "cache", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend must be one of"},
		{"postgres needs dsn", "cache", func(c *Config) { c.Cache.Backend = "postgres" }, "cache.dsn is required"},
		{"sqlite needs path", "cache", func(c *Config) { c.Cache.Backend = "sqlite"; c.Cache.Path = "" }, "cache.path is required"},
		{"bad provider", "check", func(c *Config) { c.Search.Provider = "google" }, "search.provider must be one of"},
		{"offline needs fixture", "check", func(c *Config) { c.Search.Provider = "offline" }, "offline_fixture is required"},
		{"concurrency zero", "check", func(c *Config) { c.Batch.MaxConcurrentCompanies = 0 }, "between 1 and 50"},
		{"concurrency too high", "check", func(c *Config) { c.Batch.MaxConcurrentCompanies = 51 }, "between 1 and 50"},
		{"template without name", "check", func(c *Config) { c.Pipeline.QueryTemplate = "社名変更" }, "{name}"},
		{"unknown scraper", "check", func(c *Config) { c.Fetch.Scrapers = []string{"local", "firecrawl"} }, "unknown scraper firecrawl"},
		{"serve needs port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "google"
	cfg.Batch.MaxConcurrentCompanies = 0

	err := cfg.Validate("check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.provider")
	assert.Contains(t, err.Error(), "max_concurrent_companies")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
