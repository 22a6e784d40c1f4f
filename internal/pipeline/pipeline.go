package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/cache"
	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/scoring"
)

// SearchProvider returns raw web-search hits for a query. An empty slice
// means no results; a failure is an error, normally an *AcquisitionError.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]model.RawResult, error)
}

// PageFetcher returns the visible text of a page.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// DefaultQueryTemplate is the search query; {name} is the company name.
const DefaultQueryTemplate = `"{name}" 社名変更 OR 商号変更 OR 新社名`

// Options tune a Pipeline.
type Options struct {
	QueryTemplate string
	// CompanyTimeout bounds the search and fetch work for one company.
	CompanyTimeout time.Duration
	// MaxConcurrent bounds the companies researched at once across every
	// caller of the Pipeline.
	MaxConcurrent int
	// RequireCorroboration downgrades a found name with neither a date nor
	// a reason to needs_review.
	RequireCorroboration bool
	// ExcerptRunes is the length of evidence taken from a fetched page.
	ExcerptRunes int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		QueryTemplate:  DefaultQueryTemplate,
		CompanyTimeout: 3 * time.Minute,
		MaxConcurrent:  3,
		ExcerptRunes:   160,
	}
}

// Outcome is the result of processing one input occurrence.
type Outcome struct {
	Query  model.CompanyQuery  `json:"query"`
	Record model.CompanyRecord `json:"record"`
	// State is the terminal state; Path is every state visited.
	State State   `json:"state"`
	Path  []State `json:"path"`
	// CacheHit marks this occurrence, not the record, as served from cache.
	CacheHit  bool  `json:"cache_hit"`
	Persisted bool  `json:"persisted"`
	Err       error `json:"-"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Path = append(o.Path, s)
}

// Pipeline researches companies against a search provider and records the
// outcomes through a cache owner. It is safe for concurrent use.
type Pipeline struct {
	eng     *Engine
	search  SearchProvider
	fetch   PageFetcher
	records *cache.Owner
	opts    Options
	name    string

	inflight *inflight
	slots    chan struct{}
}

// New creates a Pipeline. All cache traffic goes through records.
func New(eng *Engine, search SearchProvider, records *cache.Owner, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.QueryTemplate == "" {
		opts.QueryTemplate = def.QueryTemplate
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = def.MaxConcurrent
	}
	if opts.ExcerptRunes <= 0 {
		opts.ExcerptRunes = def.ExcerptRunes
	}
	return &Pipeline{
		eng:      eng,
		search:   search,
		records:  records,
		opts:     opts,
		name:     "search",
		inflight: newInflight(),
		slots:    make(chan struct{}, opts.MaxConcurrent),
	}
}

// WithFetcher enables re-extraction from the most official-looking page.
func (p *Pipeline) WithFetcher(f PageFetcher) *Pipeline {
	p.fetch = f
	return p
}

// Query renders the search query for a company.
func (p *Pipeline) Query(name string) string {
	return strings.ReplaceAll(p.opts.QueryTemplate, "{name}", strings.TrimSpace(name))
}

// Process runs one company through the state machine as a batch of one.
func (p *Pipeline) Process(ctx context.Context, name string) Outcome {
	out, done := p.admit(ctx, name, newClaims())
	if done {
		return out
	}
	return p.run(ctx, out)
}

// admit runs the CacheCheck and duplicate states. done is true when the
// occurrence needs no research.
func (p *Pipeline) admit(ctx context.Context, name string, claims *claims) (out Outcome, done bool) {
	out = Outcome{Query: p.eng.Normalizer.Query(name)}
	out.enter(StateStart)
	key := out.Query.NormalizedName
	if key == "" {
		out.Record = failedRecord(name)
		out.Err = eris.New("pipeline: empty company name")
		out.enter(StateFailed)
		return out, true
	}

	out.enter(StateCacheCheck)
	rec, err := p.records.Get(ctx, key)
	if err != nil {
		if ctx.Err() != nil || eris.Is(err, cache.ErrClosed) {
			out.Record = failedRecord(name)
			out.Err = eris.Wrap(err, "pipeline: cache check")
			out.enter(StateFailed)
			return out, true
		}
		zap.L().Warn("pipeline: cache read failed, treating as miss",
			zap.String("company", name), zap.Error(err))
	}
	if rec != nil {
		out.Record = *rec
		out.CacheHit = true
		out.enter(StateCacheHit)
		return out, true
	}

	if !claims.claim(key) {
		out.Record = model.CompanyRecord{
			OriginalName: name,
			ChangeDate:   model.DateUnknown,
			ChangeReason: model.ReasonUnknown,
			Status:       model.StatusDuplicateSkipped,
		}
		out.enter(StateDuplicateInBatch)
		return out, true
	}
	return out, false
}

// run researches an admitted occurrence once it holds its name across the
// whole Pipeline and a research slot. An occurrence whose name is in flight
// in another batch waits for that holder and is then served from the cache;
// it researches only if the holder left no record behind.
func (p *Pipeline) run(ctx context.Context, out Outcome) Outcome {
	key := out.Query.NormalizedName
	for {
		release, wait := p.inflight.acquire(key)
		if release != nil {
			defer release()
			break
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return p.fail(ctx, out, asAcquisition(p.name, "search", ctx.Err()))
		}
		if hit, ok := p.cached(ctx, out); ok {
			return hit
		}
	}

	// Another batch may have persisted the name between admit and acquire.
	if hit, ok := p.cached(ctx, out); ok {
		return hit
	}

	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return p.fail(ctx, out, asAcquisition(p.name, "search", ctx.Err()))
	}
	return p.research(ctx, out)
}

// cached serves out from the cache when its record is present.
func (p *Pipeline) cached(ctx context.Context, out Outcome) (Outcome, bool) {
	rec, err := p.records.Get(ctx, out.Query.NormalizedName)
	if err != nil {
		zap.L().Warn("pipeline: cache read failed, treating as miss",
			zap.String("company", out.Query.OriginalName), zap.Error(err))
		return out, false
	}
	if rec == nil {
		return out, false
	}
	return served(out, *rec), true
}

func served(out Outcome, rec model.CompanyRecord) Outcome {
	out.Record = rec
	out.CacheHit = true
	out.Err = nil
	out.enter(StateCacheHit)
	return out
}

// research runs Searching through Persisted for an admitted occurrence.
func (p *Pipeline) research(parent context.Context, out Outcome) Outcome {
	name := out.Query.OriginalName
	log := zap.L().With(zap.String("company", name))

	ctx := parent
	if p.opts.CompanyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, p.opts.CompanyTimeout)
		defer cancel()
	}

	out.enter(StateSearching)
	raw, err := p.search.Search(ctx, p.Query(name))
	if err != nil {
		return p.fail(parent, out, asAcquisition(p.name, "search", err))
	}

	out.enter(StateFiltering)
	survivors := p.filter(name, raw)

	out.enter(StateRanking)
	ranked := scoring.Rank(p.eng.Scorer.ScoreAll(name, survivors))
	log.Debug("pipeline: ranked results",
		zap.Int("raw", len(raw)),
		zap.Int("survivors", len(ranked)),
	)

	out.enter(StateExtracting)
	rec, changed, err := p.decide(ctx, name, ranked)
	if err != nil {
		return p.fail(parent, out, err)
	}
	if changed {
		out.enter(StateChanged)
	} else {
		out.enter(StateNoChangeFallback)
	}
	out.Record = rec

	existing, err := p.records.PutIfAbsent(parent, out.Query.NormalizedName, rec)
	if err != nil {
		out.Record = failedRecord(name)
		out.Err = eris.Wrap(err, "pipeline: persist record")
		out.enter(StateFailed)
		log.Error("pipeline: persist failed", zap.Error(err))
		return out
	}
	if existing != nil {
		log.Info("pipeline: record already persisted, keeping it")
		return served(out, *existing)
	}
	out.Persisted = true
	out.enter(StatePersisted)
	log.Info("pipeline: company done",
		zap.String("status", string(rec.Status)),
		zap.String("new_name", rec.NewName),
	)
	return out
}

// fail records a failed outcome. It is persisted unless the whole run was
// cancelled, so an interrupted batch resumes with the company unprocessed.
func (p *Pipeline) fail(parent context.Context, out Outcome, err error) Outcome {
	name := out.Query.OriginalName
	out.Err = err
	out.Record = failedRecord(name)
	if parent.Err() == nil {
		existing, perr := p.records.PutIfAbsent(parent, out.Query.NormalizedName, out.Record)
		switch {
		case perr != nil:
			zap.L().Error("pipeline: persist failed record", zap.String("company", name), zap.Error(perr))
		case existing != nil:
			return served(out, *existing)
		default:
			out.Persisted = true
		}
	}
	out.enter(StateFailed)
	zap.L().Warn("pipeline: company failed",
		zap.String("company", name),
		zap.Bool("persisted", out.Persisted),
		zap.Error(err),
	)
	return out
}

// filter unwraps redirect URLs, drops repeated URLs and removes low-quality
// results.
func (p *Pipeline) filter(name string, raw []model.RawResult) []model.RawResult {
	seen := make(map[string]bool, len(raw))
	out := make([]model.RawResult, 0, len(raw))
	for _, r := range raw {
		r.URL = p.eng.Filter.Unwrap(r.URL)
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		if reason := p.eng.Filter.Reason(r.Snippet, r.URL); reason != "" {
			zap.L().Debug("pipeline: dropped low-quality result",
				zap.String("company", name),
				zap.String("url", r.URL),
				zap.String("reason", reason),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func failedRecord(name string) model.CompanyRecord {
	return model.CompanyRecord{
		OriginalName: name,
		ChangeDate:   model.DateUnknown,
		ChangeReason: model.ReasonUnknown,
		Status:       model.StatusFailed,
	}
}
