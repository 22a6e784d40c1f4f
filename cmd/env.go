package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/cache"
	"github.com/sells-group/rename-cli/internal/config"
	"github.com/sells-group/rename-cli/internal/pipeline"
	"github.com/sells-group/rename-cli/internal/rules"
	"github.com/sells-group/rename-cli/internal/scrape"
	"github.com/sells-group/rename-cli/internal/search"
	"github.com/sells-group/rename-cli/pkg/browser"
	"github.com/sells-group/rename-cli/pkg/jina"
)

// researchEnv holds everything the check and serve commands need.
type researchEnv struct {
	Engine   *pipeline.Engine
	Records  *cache.Owner
	Pipeline *pipeline.Pipeline

	browser *browser.Session
}

// Close stops the browser and flushes the cache.
func (e *researchEnv) Close() {
	if e.browser != nil {
		e.browser.Close()
	}
	if e.Records != nil {
		if err := e.Records.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initEngine compiles the active rule table.
func initEngine(c *config.Config) (*pipeline.Engine, error) {
	tbl, err := rules.Load(c.Rules.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load rules")
	}
	return pipeline.NewEngine(tbl)
}

func cacheOptions(c *config.Config) cache.Options {
	return cache.Options{
		Backend: cache.Backend(c.Cache.Backend),
		Path:    c.Cache.Path,
		DSN:     c.Cache.DSN,
		Pool:    &cache.PoolConfig{MaxConns: c.Cache.MaxConns, MinConns: c.Cache.MinConns},
	}
}

// openCache opens the configured record store behind a single-writer owner.
func openCache(ctx context.Context, c *config.Config) (*cache.Owner, error) {
	st, err := cache.Open(ctx, cacheOptions(c))
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	return cache.NewOwner(st), nil
}

// initResearch builds the engine, cache, search provider and page fetcher.
// Callers should defer env.Close().
func initResearch(ctx context.Context, c *config.Config, mode string) (*researchEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &researchEnv{}
	var err error
	if env.Engine, err = initEngine(c); err != nil {
		return nil, err
	}
	if env.Records, err = openCache(ctx, c); err != nil {
		return nil, err
	}

	provider, err := env.searchProvider(ctx, c)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Pipeline = pipeline.New(env.Engine, provider, env.Records, pipeline.Options{
		QueryTemplate:        c.Pipeline.QueryTemplate,
		CompanyTimeout:       c.Batch.CompanyTimeout(),
		MaxConcurrent:        c.Batch.MaxConcurrentCompanies,
		RequireCorroboration: c.Pipeline.RequireCorroboration,
		ExcerptRunes:         c.Pipeline.ExcerptRunes,
	})

	if c.Fetch.Enabled && c.Search.Provider != search.BackendOffline {
		chain, err := env.fetchChain(ctx, c)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Pipeline.WithFetcher(chain)
	}

	zap.L().Info("research environment ready",
		zap.String("rules", env.Engine.Rules.Version),
		zap.String("search", c.Search.Provider),
		zap.String("cache", c.Cache.Backend),
		zap.Bool("fetch", c.Fetch.Enabled),
	)
	return env, nil
}

func newJinaClient(c *config.Config) jina.Client {
	opts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL)}
	if c.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	return jina.NewClient(c.Jina.Key, opts...)
}

func bingOptions(c *config.Config) search.BingOptions {
	return search.BingOptions{
		BaseURL:   c.Bing.BaseURL,
		Market:    c.Bing.Market,
		Count:     c.Bing.Count,
		UserAgent: c.Bing.UserAgent,
	}
}

// session starts the shared browser on first use.
func (e *researchEnv) session(ctx context.Context, c *config.Config) (*browser.Session, error) {
	if e.browser != nil {
		return e.browser, nil
	}
	s, err := browser.NewSession(ctx, browser.Options{
		Headful:     c.Browser.Headful,
		ExecPath:    c.Browser.ExecPath,
		UserAgent:   c.Bing.UserAgent,
		PageTimeout: time.Duration(c.Browser.PageTimeoutSecs) * time.Second,
		Settle:      time.Duration(c.Browser.SettleMs) * time.Millisecond,
	})
	if err != nil {
		return nil, eris.Wrap(err, "start browser")
	}
	e.browser = s
	return s, nil
}

// searchProvider builds the configured provider behind the rate limiter,
// retry policy and circuit breaker.
func (e *researchEnv) searchProvider(ctx context.Context, c *config.Config) (search.Provider, error) {
	var p search.Provider
	limits := search.LimitOptions{
		RequestsPerSecond: c.Search.RequestsPerSecond,
		Burst:             c.Search.Burst,
		Retry:             c.Search.Resilience.Retry(),
		Circuit:           c.Search.Resilience.Circuit(),
	}

	switch c.Search.Provider {
	case search.BackendJina:
		if c.Jina.Key == "" {
			zap.L().Warn("RENAME_JINA_KEY not set, jina search runs unauthenticated")
		}
		p = search.NewJina(newJinaClient(c), c.Jina.Country, c.Jina.Language, c.Jina.Count)
	case search.BackendBing:
		p = search.NewBing(bingOptions(c))
	case search.BackendBrowser:
		s, err := e.session(ctx, c)
		if err != nil {
			return nil, err
		}
		p = search.NewBrowser(s, bingOptions(c))
	case search.BackendOffline:
		o, err := search.LoadOffline(c.Search.OfflineFixture)
		if err != nil {
			return nil, err
		}
		p = o
		limits.RequestsPerSecond = 0
	default:
		return nil, eris.Errorf("unknown search provider %q", c.Search.Provider)
	}
	return search.NewLimited(p, limits), nil
}

// fetchChain builds the page fetcher from the configured scrapers.
func (e *researchEnv) fetchChain(ctx context.Context, c *config.Config) (*scrape.Chain, error) {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	var scrapers []scrape.Scraper
	for _, name := range c.Fetch.Scrapers {
		switch name {
		case "local":
			scrapers = append(scrapers, scrape.NewLocalScraper(timeout, c.Fetch.UserAgent))
		case "jina":
			scrapers = append(scrapers, scrape.NewJinaAdapter(newJinaClient(c), time.Duration(c.Jina.PageTimeoutSecs)*time.Second))
		case "browser":
			s, err := e.session(ctx, c)
			if err != nil {
				return nil, err
			}
			scrapers = append(scrapers, scrape.NewBrowserScraper(s))
		default:
			return nil, eris.Errorf("unknown scraper %q", name)
		}
	}
	return scrape.NewChain(scrape.NewPathMatcher(c.Fetch.ExcludePaths), scrapers...), nil
}
