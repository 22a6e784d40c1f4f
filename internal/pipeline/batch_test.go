package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rename-cli/internal/cache"
	"github.com/sells-group/rename-cli/internal/model"
)

func TestBatch_ScenarioD_DuplicateSearchedOnce(t *testing.T) {
	sp := new(mockSearch)
	sp.On("Search", mock.Anything, mock.Anything).Return([]model.RawResult{}, nil)

	p, _ := newTestPipeline(t, sp, Options{MaxConcurrent: 4})
	outs, sum := p.Batch(context.Background(), []string{"株式会社テスト", "（株）テスト"})

	require.Len(t, outs, 2)
	assert.Equal(t, model.StatusUnchanged, outs[0].Record.Status)
	assert.True(t, outs[0].Persisted)

	assert.Equal(t, StateDuplicateInBatch, outs[1].State)
	assert.Equal(t, model.StatusDuplicateSkipped, outs[1].Record.Status)
	assert.Equal(t, "（株）テスト", outs[1].Record.OriginalName)
	assert.False(t, outs[1].Persisted)

	sp.AssertNumberOfCalls(t, "Search", 1)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Duplicates)
	assert.NotEmpty(t, sum.RunID)
}

func TestBatch_OutputFollowsInputOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	sp := searchFunc(func(_ context.Context, q string) ([]model.RawResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		// Later names finish first.
		var idx int
		_, _ = fmt.Sscanf(q, `"会社%d"`, &idx)
		time.Sleep(time.Duration(10-idx) * 3 * time.Millisecond)
		return nil, nil
	})

	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("会社%d", i)
	}

	p, _ := newTestPipeline(t, sp, Options{MaxConcurrent: 3})
	outs, sum := p.Batch(context.Background(), names)

	require.Len(t, outs, len(names))
	for i, o := range outs {
		assert.Equal(t, names[i], o.Record.OriginalName)
		assert.Equal(t, names[i], o.Query.OriginalName)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 8, sum.Unchanged)
}

func TestBatch_CacheHitCounted(t *testing.T) {
	sp := new(mockSearch)
	p, owner := newTestPipeline(t, sp, Options{})

	cached := model.CompanyRecord{
		OriginalName: "テスト株式会社",
		NewName:      "新テスト株式会社",
		ChangeDate:   "2024年04月01日",
		ChangeReason: model.ReasonUnknown,
		Status:       model.StatusChanged,
	}
	require.NoError(t, owner.Put(context.Background(), "テスト", cached))

	outs, sum := p.Batch(context.Background(), []string{"テスト株式会社", "テスト株式会社"})
	require.Len(t, outs, 2)
	for _, o := range outs {
		assert.True(t, o.CacheHit)
		assert.Equal(t, cached, o.Record)
	}
	assert.Equal(t, 2, sum.CacheHits)
	assert.Equal(t, 2, sum.Changed)
	sp.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestBatch_CancelledRunPersistsNothing(t *testing.T) {
	sp := new(mockSearch)
	p, owner := newTestPipeline(t, sp, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outs, sum := p.Batch(ctx, []string{"会社A", "会社B", "会社C"})

	for _, o := range outs {
		assert.Equal(t, model.StatusFailed, o.Record.Status)
		assert.False(t, o.Persisted)
	}
	assert.Equal(t, 3, sum.Failed)

	all, err := owner.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	sp.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestBatch_Empty(t *testing.T) {
	p, _ := newTestPipeline(t, new(mockSearch), Options{})
	outs, sum := p.Batch(context.Background(), nil)
	assert.Empty(t, outs)
	assert.Zero(t, sum.Total)
}

func TestBatch_ConcurrentBatchesShareClaims(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	sp := searchFunc(func(_ context.Context, _ string) ([]model.RawResult, error) {
		if calls.Add(1) == 1 {
			close(started)
			time.Sleep(50 * time.Millisecond)
			return []model.RawResult{{Snippet: scenarioA, URL: "https://newswire.example.com/release/123"}}, nil
		}
		return nil, nil
	})
	p, owner := newTestPipeline(t, sp, Options{MaxConcurrent: 4})

	results := make([][]Outcome, 2)
	done := make(chan int, 2)
	go func() {
		results[0], _ = p.Batch(context.Background(), []string{"Test Inc."})
		done <- 0
	}()
	<-started
	go func() {
		results[1], _ = p.Batch(context.Background(), []string{"TEST Inc"})
		done <- 1
	}()
	<-done
	<-done

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, results[0], 1)
	require.Len(t, results[1], 1)
	assert.True(t, results[0][0].Persisted)
	assert.Equal(t, model.StatusChanged, results[0][0].Record.Status)
	assert.True(t, results[1][0].CacheHit)
	assert.Equal(t, StateCacheHit, results[1][0].State)
	assert.Equal(t, results[0][0].Record, results[1][0].Record)

	cached, err := owner.Get(context.Background(), "test")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.StatusChanged, cached.Status)
}

func TestBatch_ConcurrencyBoundIsPipelineWide(t *testing.T) {
	var inFlight, peak atomic.Int32
	sp := searchFunc(func(_ context.Context, _ string) ([]model.RawResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	})
	p, _ := newTestPipeline(t, sp, Options{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for b := 0; b < 3; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			names := make([]string, 4)
			for i := range names {
				names[i] = fmt.Sprintf("会社%d-%d", b, i)
			}
			outs, sum := p.Batch(context.Background(), names)
			assert.Len(t, outs, 4)
			assert.Equal(t, 4, sum.Unchanged)
		}(b)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// putFailStore fails every write.
type putFailStore struct {
	cache.Store
}

func (putFailStore) Put(context.Context, string, model.CompanyRecord) error {
	return errors.New("disk full")
}

func TestBatch_PersistFailureCountedAsFailed(t *testing.T) {
	s, err := cache.OpenJSON(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	owner := cache.NewOwner(putFailStore{Store: s})
	t.Cleanup(func() { owner.Close() }) //nolint:errcheck

	sp := new(mockSearch)
	sp.On("Search", mock.Anything, mock.Anything).Return([]model.RawResult{
		{Snippet: scenarioA, URL: "https://newswire.example.com/release/123"},
	}, nil)
	p := New(newTestEngine(t), sp, owner, Options{})

	outs, sum := p.Batch(context.Background(), []string{"Test Inc."})

	require.Len(t, outs, 1)
	assert.Equal(t, StateFailed, outs[0].State)
	assert.Equal(t, model.StatusFailed, outs[0].Record.Status)
	assert.Empty(t, outs[0].Record.NewName)
	assert.False(t, outs[0].Persisted)
	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.Changed)
}
