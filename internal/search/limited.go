package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/pipeline"
	"github.com/sells-group/rename-cli/internal/resilience"
)

// LimitOptions configure Limited.
type LimitOptions struct {
	// RequestsPerSecond is the sustained request rate; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
	Circuit           resilience.CircuitBreakerConfig
}

// Limited wraps a Provider with a shared rate limiter, retries with backoff
// and a circuit breaker. Every failure it returns is a
// *pipeline.AcquisitionError.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewLimited decorates next.
func NewLimited(next Provider, opts LimitOptions) *Limited {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(next.Name(), "search")
	}
	circuit := opts.Circuit
	if circuit.Name == "" {
		circuit.Name = next.Name()
	}
	if circuit.ShouldTrip == nil {
		circuit.ShouldTrip = resilience.IsTransient
	}

	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(circuit),
	}
}

// Name implements Provider.
func (l *Limited) Name() string { return l.next.Name() }

// Search implements Provider.
func (l *Limited) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	start := time.Now()
	results, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.RawResult, error) {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return resilience.ExecuteVal(ctx, l.breaker, func(ctx context.Context) ([]model.RawResult, error) {
			return l.next.Search(ctx, query)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, pipeline.NewAcquisitionError(l.next.Name(), "search", err)
	}
	zap.L().Debug("search: results",
		zap.String("provider", l.next.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("results", len(results)),
	)
	if results == nil {
		results = []model.RawResult{}
	}
	return results, nil
}
