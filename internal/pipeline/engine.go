// Package pipeline runs the per-company rename research state machine and
// the ordered concurrent batch around it.
package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/extract"
	"github.com/sells-group/rename-cli/internal/normalize"
	"github.com/sells-group/rename-cli/internal/quality"
	"github.com/sells-group/rename-cli/internal/rules"
	"github.com/sells-group/rename-cli/internal/scoring"
)

// Engine bundles the pure components built from one rule table. It is
// immutable and shared by every pipeline.
type Engine struct {
	Rules      *rules.Table
	Normalizer *normalize.Normalizer
	Filter     *quality.Filter
	Scorer     *scoring.Scorer
	Extractor  *extract.Extractor
}

// NewEngine compiles tbl into an Engine.
func NewEngine(tbl *rules.Table) (*Engine, error) {
	if err := tbl.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid rule table")
	}
	n := normalize.New(tbl.Names)
	ex, err := extract.New(tbl, n)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build extractor")
	}
	return &Engine{
		Rules:      tbl,
		Normalizer: n,
		Filter:     quality.New(tbl.Domains, tbl.Quality),
		Scorer:     scoring.New(n, tbl.Domains, tbl.Scoring),
		Extractor:  ex,
	}, nil
}
