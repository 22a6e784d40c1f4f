// Package search implements pipeline.SearchProvider over Jina, Bing (plain
// HTTP or a headless browser) and offline fixtures, plus a decorator that
// adds rate limiting, retries and a circuit breaker.
package search

import (
	"context"

	"github.com/sells-group/rename-cli/internal/model"
)

// Provider is a named search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.RawResult, error)
}

// Backend names selectable by configuration.
const (
	BackendJina    = "jina"
	BackendBing    = "bing"
	BackendBrowser = "browser"
	BackendOffline = "offline"
)
