package search

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
)

// Offline answers searches from a fixture file mapping company names to
// canned results. A query matches the longest company name it contains.
type Offline struct {
	results map[string][]model.RawResult
	names   []string
}

// NewOffline creates an Offline provider from results keyed by company name.
func NewOffline(results map[string][]model.RawResult) *Offline {
	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return &Offline{results: results, names: names}
}

// LoadOffline reads a JSON fixture: {"company": [{"title","snippet","url"}]}.
func LoadOffline(path string) (*Offline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "search: read offline fixture %s", path)
	}
	var results map[string][]model.RawResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, eris.Wrapf(err, "search: decode offline fixture %s", path)
	}
	return NewOffline(results), nil
}

// Name implements Provider.
func (o *Offline) Name() string { return BackendOffline }

// Search implements Provider.
func (o *Offline) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, n := range o.names {
		if strings.Contains(query, n) {
			return append([]model.RawResult(nil), o.results[n]...), nil
		}
	}
	return []model.RawResult{}, nil
}
