package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// TextRenderer returns the rendered text of a page. *browser.Session
// implements it.
type TextRenderer interface {
	Text(ctx context.Context, url string) (string, error)
}

// BrowserScraper renders pages in a headless browser, for sites that serve
// their content from JavaScript.
type BrowserScraper struct {
	r TextRenderer
}

// NewBrowserScraper creates a BrowserScraper over r.
func NewBrowserScraper(r TextRenderer) *BrowserScraper {
	return &BrowserScraper{r: r}
}

func (b *BrowserScraper) Name() string           { return "browser" }
func (b *BrowserScraper) Supports(_ string) bool { return true }

// Scrape renders targetURL and returns its text.
func (b *BrowserScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	text, err := b.r.Text(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "browser: render")
	}
	text = tidyLines(text)
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("browser: empty page")
	}
	return &Result{
		Page:   Page{URL: targetURL, Text: text},
		Source: "browser",
	}, nil
}
