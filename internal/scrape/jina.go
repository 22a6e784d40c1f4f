package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/resilience"
	"github.com/sells-group/rename-cli/pkg/jina"
)

// JinaAdapter wraps the Jina reader as a Scraper. Repeated failures open
// its circuit and the chain skips it until the reset timeout passes.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
	opts    []jina.ReadOption
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures open the
// circuit for a minute.
func NewJinaAdapter(client jina.Client, pageTimeout time.Duration) *JinaAdapter {
	var opts []jina.ReadOption
	if pageTimeout > 0 {
		opts = append(opts, jina.WithPageTimeout(int(pageTimeout.Seconds())))
	}
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "jina_reader",
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
			ShouldTrip: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			},
		}),
		opts: opts,
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via the Jina reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL, j.opts...)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response needs fallback")
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: Page{
			URL:        pageURL,
			Title:      resp.Data.Title,
			Text:       tidyLines(resp.Data.Content),
			StatusCode: resp.Code,
		},
		Source: "jina",
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
	"アクセスが拒否されました",
	"javascriptを有効にしてください",
}

// needsFallback reports whether a reader response is empty or a challenge
// page rather than the article.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len([]rune(content)) < 20 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
