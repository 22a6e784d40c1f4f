// Package config loads rename-cli settings from config.yaml and RENAME_*
// environment variables.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/rename-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Jina     JinaConfig     `yaml:"jina" mapstructure:"jina"`
	Bing     BingConfig     `yaml:"bing" mapstructure:"bing"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// CacheConfig selects the record cache backend.
type CacheConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // json, sqlite, postgres
	Path     string `yaml:"path" mapstructure:"path"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SearchConfig selects and throttles the search provider.
type SearchConfig struct {
	Provider          string              `yaml:"provider" mapstructure:"provider"` // jina, bing, browser, offline
	RequestsPerSecond float64             `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int                 `yaml:"burst" mapstructure:"burst"`
	OfflineFixture    string              `yaml:"offline_fixture" mapstructure:"offline_fixture"`
	Resilience        resilience.Settings `yaml:"resilience" mapstructure:"resilience"`
}

// JinaConfig holds Jina search and reader settings.
type JinaConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL   string `yaml:"search_base_url" mapstructure:"search_base_url"`
	Country         string `yaml:"country" mapstructure:"country"`
	Language        string `yaml:"language" mapstructure:"language"`
	Count           int    `yaml:"count" mapstructure:"count"`
	PageTimeoutSecs int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
}

// BingConfig configures the Bing results-page providers.
type BingConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Market    string `yaml:"market" mapstructure:"market"`
	Count     int    `yaml:"count" mapstructure:"count"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	Headful         bool   `yaml:"headful" mapstructure:"headful"`
	ExecPath        string `yaml:"exec_path" mapstructure:"exec_path"`
	PageTimeoutSecs int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	SettleMs        int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// FetchConfig configures official-page fetching.
type FetchConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Scrapers run in order: local, jina, browser.
	Scrapers     []string `yaml:"scrapers" mapstructure:"scrapers"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	CompanyTimeoutSecs     int `yaml:"company_timeout_secs" mapstructure:"company_timeout_secs"`
}

// CompanyTimeout returns the per-company deadline.
func (b BatchConfig) CompanyTimeout() time.Duration {
	return time.Duration(b.CompanyTimeoutSecs) * time.Second
}

// PipelineConfig tunes the per-company decision.
type PipelineConfig struct {
	QueryTemplate        string `yaml:"query_template" mapstructure:"query_template"`
	RequireCorroboration bool   `yaml:"require_corroboration" mapstructure:"require_corroboration"`
	ExcerptRunes         int    `yaml:"excerpt_runes" mapstructure:"excerpt_runes"`
}

// RulesConfig points at an override rule table; empty uses the built-in one.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxNames       int      `yaml:"max_names" mapstructure:"max_names"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.backend", "json")
	v.SetDefault("cache.path", "rename_cache.json")
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.max_conns", 4)
	v.SetDefault("cache.min_conns", 1)
	v.SetDefault("search.provider", "jina")
	v.SetDefault("search.requests_per_second", 1.0)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.offline_fixture", "")
	v.SetDefault("search.resilience.max_attempts", 3)
	v.SetDefault("search.resilience.initial_backoff_ms", 1000)
	v.SetDefault("search.resilience.max_backoff_ms", 30000)
	v.SetDefault("search.resilience.multiplier", 2.0)
	v.SetDefault("search.resilience.failure_threshold", 5)
	v.SetDefault("search.resilience.reset_timeout_secs", 30)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.country", "jp")
	v.SetDefault("jina.language", "ja")
	v.SetDefault("jina.count", 10)
	v.SetDefault("jina.page_timeout_secs", 20)
	v.SetDefault("bing.base_url", "https://www.bing.com/search")
	v.SetDefault("bing.market", "ja-JP")
	v.SetDefault("bing.count", 20)
	v.SetDefault("bing.user_agent", "")
	v.SetDefault("browser.headful", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.page_timeout_secs", 30)
	v.SetDefault("browser.settle_ms", 1500)
	v.SetDefault("fetch.enabled", true)
	v.SetDefault("fetch.scrapers", []string{"local", "jina"})
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.exclude_paths", []string{})
	v.SetDefault("batch.max_concurrent_companies", 3)
	v.SetDefault("batch.company_timeout_secs", 180)
	v.SetDefault("pipeline.query_template", `"{name}" 社名変更 OR 商号変更 OR 新社名`)
	v.SetDefault("pipeline.require_corroboration", false)
	v.SetDefault("pipeline.excerpt_runes", 160)
	v.SetDefault("rules.path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_names", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var (
	searchProviders = []string{"jina", "bing", "browser", "offline"}
	cacheBackends   = []string{"json", "sqlite", "postgres"}
	fetchScrapers   = []string{"local", "jina", "browser"}
)

// Validate checks the settings a command needs. mode is "check", "serve"
// or "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Cache.Backend {
	case "postgres":
		if c.Cache.DSN == "" {
			errs = append(errs, "cache.dsn is required for the postgres backend")
		}
	case "json", "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, "cache.path is required for the "+c.Cache.Backend+" backend")
		}
	default:
		errs = append(errs, "cache.backend must be one of "+strings.Join(cacheBackends, ", "))
	}

	switch mode {
	case "cache":
	case "check", "serve":
		errs = append(errs, c.validateResearch()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateResearch() []string {
	var errs []string
	if !slices.Contains(searchProviders, c.Search.Provider) {
		errs = append(errs, "search.provider must be one of "+strings.Join(searchProviders, ", "))
	}
	if c.Search.Provider == "offline" && c.Search.OfflineFixture == "" {
		errs = append(errs, "search.offline_fixture is required for the offline provider")
	}
	if c.Search.RequestsPerSecond < 0 {
		errs = append(errs, "search.requests_per_second must be >= 0")
	}
	if c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 50 {
		errs = append(errs, "batch.max_concurrent_companies must be between 1 and 50")
	}
	if c.Batch.CompanyTimeoutSecs < 0 {
		errs = append(errs, "batch.company_timeout_secs must be >= 0")
	}
	if !strings.Contains(c.Pipeline.QueryTemplate, "{name}") {
		errs = append(errs, "pipeline.query_template must contain {name}")
	}
	for _, s := range c.Fetch.Scrapers {
		if !slices.Contains(fetchScrapers, s) {
			errs = append(errs, "fetch.scrapers: unknown scraper "+s)
		}
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
