// Package scrape fetches the visible text of web pages through a chain of
// scrapers: plain HTTP first, then the Jina reader, then a headless browser.
package scrape

import (
	"context"
)

// Page is the text content of one fetched page.
type Page struct {
	URL        string
	Title      string
	Text       string
	StatusCode int
}

// Result holds a scraped page with its source.
type Result struct {
	Page   Page
	Source string // e.g. "local_http", "jina", "browser"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
