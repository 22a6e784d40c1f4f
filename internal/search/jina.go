package search

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/resilience"
	"github.com/sells-group/rename-cli/pkg/jina"
)

// Jina searches through the Jina search API.
type Jina struct {
	client jina.Client
	opts   []jina.SearchOption
}

// NewJina creates a Jina provider. country and language may be empty.
func NewJina(client jina.Client, country, language string, count int) *Jina {
	var opts []jina.SearchOption
	if country != "" || language != "" {
		opts = append(opts, jina.WithLocale(country, language))
	}
	if count > 0 {
		opts = append(opts, jina.WithCount(count))
	}
	return &Jina{client: client, opts: opts}
}

// Name implements Provider.
func (j *Jina) Name() string { return BackendJina }

// Search implements Provider.
func (j *Jina) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	resp, err := j.client.Search(ctx, query, j.opts...)
	if err != nil {
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) {
			return nil, resilience.StatusError("jina", apiErr.StatusCode, apiErr.Body)
		}
		return nil, err
	}

	out := make([]model.RawResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = firstRunes(r.Content, 300)
		}
		out = append(out, model.RawResult{
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(snippet),
			URL:     r.URL,
		})
	}
	return out, nil
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
