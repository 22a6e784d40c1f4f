package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rename-cli/internal/model"
)

// claims is the set of normalized names already taken in one batch.
type claims struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newClaims() *claims {
	return &claims{seen: make(map[string]struct{})}
}

// claim reports whether key was free and takes it.
func (c *claims) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}
	return true
}

// inflight holds the names being researched by any caller of a Pipeline.
// A name stays held until its record is persisted or the attempt ends.
type inflight struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]chan struct{})}
}

// acquire takes key and returns its release func. When key is already
// held it returns nil and a channel closed on release.
func (f *inflight) acquire(key string) (release func(), wait <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.keys[key]; ok {
		return nil, ch
	}
	ch := make(chan struct{})
	f.keys[key] = ch
	return func() {
		f.mu.Lock()
		delete(f.keys, key)
		f.mu.Unlock()
		close(ch)
	}, nil
}

// Summary counts the outcomes of a batch.
type Summary struct {
	RunID       string        `json:"run_id"`
	Total       int           `json:"total"`
	Changed     int           `json:"changed"`
	Unchanged   int           `json:"unchanged"`
	NeedsReview int           `json:"needs_review"`
	Duplicates  int           `json:"duplicates"`
	Failed      int           `json:"failed"`
	CacheHits   int           `json:"cache_hits"`
	Elapsed     time.Duration `json:"elapsed"`
}

func (s *Summary) add(o Outcome) {
	s.Total++
	if o.CacheHit {
		s.CacheHits++
	}
	if o.State == StateFailed {
		s.Failed++
		return
	}
	switch o.Record.Status {
	case model.StatusChanged:
		s.Changed++
	case model.StatusUnchanged:
		s.Unchanged++
	case model.StatusNeedsReview:
		s.NeedsReview++
	case model.StatusDuplicateSkipped:
		s.Duplicates++
	case model.StatusFailed:
		s.Failed++
	}
}

// Batch processes names and returns one Outcome per input, in input order.
// Cache checks and duplicate claims happen in input order before any
// research starts, so the first occurrence of a name always owns it within
// the batch. Research shares the Pipeline's MaxConcurrent slots with every
// other concurrent Batch, and a name in flight elsewhere is waited for and
// served from the cache.
func (p *Pipeline) Batch(ctx context.Context, names []string) ([]Outcome, Summary) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	log.Info("pipeline: batch started",
		zap.Int("companies", len(names)),
		zap.Int("concurrency", p.opts.MaxConcurrent),
	)

	out := make([]Outcome, len(names))
	pending := make([]int, 0, len(names))
	taken := newClaims()
	for i, name := range names {
		o, done := p.admit(ctx, name, taken)
		out[i] = o
		if !done {
			pending = append(pending, i)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.opts.MaxConcurrent)
	for _, i := range pending {
		g.Go(func() error {
			if ctx.Err() != nil {
				out[i] = p.fail(ctx, out[i], asAcquisition(p.name, "search", ctx.Err()))
				return nil
			}
			log.Info("pipeline: processing company",
				zap.Int("index", i+1),
				zap.Int("total", len(names)),
				zap.String("company", names[i]),
			)
			out[i] = p.run(ctx, out[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range out {
		sum.add(o)
	}
	sum.Elapsed = time.Since(start)
	log.Info("pipeline: batch complete",
		zap.Int("total", sum.Total),
		zap.Int("changed", sum.Changed),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("needs_review", sum.NeedsReview),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("failed", sum.Failed),
		zap.Int("cache_hits", sum.CacheHits),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return out, sum
}
