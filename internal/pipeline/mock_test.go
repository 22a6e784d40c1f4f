package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rename-cli/internal/cache"
	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/rules"
)

// --- SearchProvider mock ---

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawResult), args.Error(1)
}

// --- PageFetcher mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchText(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// searchFunc adapts a function to SearchProvider.
type searchFunc func(ctx context.Context, query string) ([]model.RawResult, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]model.RawResult, error) {
	return f(ctx, query)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tbl, err := rules.Default()
	require.NoError(t, err)
	eng, err := NewEngine(tbl)
	require.NoError(t, err)
	return eng
}

func newTestOwner(t *testing.T) *cache.Owner {
	t.Helper()
	s, err := cache.OpenJSON(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	o := cache.NewOwner(s)
	t.Cleanup(func() { o.Close() }) //nolint:errcheck
	return o
}

func newTestPipeline(t *testing.T, sp SearchProvider, opts Options) (*Pipeline, *cache.Owner) {
	t.Helper()
	owner := newTestOwner(t)
	return New(newTestEngine(t), sp, owner, opts), owner
}
