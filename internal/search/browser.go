package search

import (
	"context"
	"strings"

	"github.com/sells-group/rename-cli/internal/model"
)

// Renderer returns the rendered HTML of a page. *browser.Session
// implements it.
type Renderer interface {
	HTML(ctx context.Context, url string) (string, error)
}

// Browser loads the Bing results page in a headless browser, for networks
// where plain HTTP requests are served a consent or challenge page.
type Browser struct {
	r    Renderer
	opts BingOptions
}

// NewBrowser creates a Browser provider over r.
func NewBrowser(r Renderer, opts BingOptions) *Browser {
	return &Browser{r: r, opts: opts.withDefaults()}
}

// Name implements Provider.
func (b *Browser) Name() string { return BackendBrowser }

// Search implements Provider.
func (b *Browser) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	html, err := b.r.HTML(ctx, b.opts.searchURL(query))
	if err != nil {
		return nil, err
	}
	return ParseBing(strings.NewReader(html))
}
