package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/resilience"
)

// DefaultBingURL is the Bing web search endpoint.
const DefaultBingURL = "https://www.bing.com/search"

// BingOptions configures the Bing providers.
type BingOptions struct {
	BaseURL   string
	Market    string // e.g. "ja-JP"
	Count     int
	UserAgent string
}

func (o BingOptions) withDefaults() BingOptions {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBingURL
	}
	if o.Market == "" {
		o.Market = "ja-JP"
	}
	if o.Count <= 0 {
		o.Count = 20
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
	return o
}

// searchURL builds the results-page URL for query.
func (o BingOptions) searchURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(o.Count))
	params.Set("mkt", o.Market)
	if lang, _, ok := strings.Cut(o.Market, "-"); ok {
		params.Set("setlang", lang)
	}
	return o.BaseURL + "?" + params.Encode()
}

// Bing scrapes the Bing results page over plain HTTP.
type Bing struct {
	opts BingOptions
	http *http.Client
}

// NewBing creates a Bing provider.
func NewBing(opts BingOptions) *Bing {
	return &Bing{
		opts: opts.withDefaults(),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Provider.
func (b *Bing) Name() string { return BackendBing }

// Search implements Provider.
func (b *Bing) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.searchURL(query), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bing: create request")
	}
	req.Header.Set("User-Agent", b.opts.UserAgent)
	req.Header.Set("Accept-Language", b.opts.Market+",ja;q=0.9,en;q=0.5")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bing: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resilience.StatusError("bing", resp.StatusCode, string(body))
	}
	return ParseBing(resp.Body)
}

// ParseBing extracts organic results from a Bing results page. Results
// without a link are skipped; a page with no results yields an empty slice.
func ParseBing(r io.Reader) ([]model.RawResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "bing: parse results page")
	}

	if doc.Find("#b_captcha, .captcha, #captcha").Length() > 0 {
		return nil, resilience.NewTransientError(eris.New("bing: captcha challenge"), http.StatusTooManyRequests)
	}

	out := []model.RawResult{}
	doc.Find("li.b_algo").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("h2 a").First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		snippet := s.Find(".b_caption p").First().Text()
		if snippet == "" {
			snippet = s.Find("p").First().Text()
		}
		out = append(out, model.RawResult{
			Title:   collapse(link.Text()),
			Snippet: collapse(snippet),
			URL:     strings.TrimSpace(href),
		})
	})
	return out, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
