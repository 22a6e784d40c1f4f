package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOwner(t *testing.T) (*Owner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.json")
	s, err := OpenJSON(path)
	require.NoError(t, err)
	o := NewOwner(s)
	t.Cleanup(func() { o.Close() }) //nolint:errcheck
	return o, path
}

func TestOwner_ConcurrentWritersAllLand(t *testing.T) {
	o, path := newTestOwner(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%02d", i)
			assert.NoError(t, o.Put(ctx, key, changedRecord(key, "new-"+key)))
		}(i)
	}
	wg.Wait()

	all, err := o.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 32)

	require.NoError(t, o.Close())
	reopened, err := OpenJSON(path)
	require.NoError(t, err)
	onDisk, err := reopened.All(ctx)
	require.NoError(t, err)
	assert.Len(t, onDisk, 32)
}

func TestOwner_GetAndDelete(t *testing.T) {
	o, _ := newTestOwner(t)
	ctx := context.Background()

	require.NoError(t, o.Put(ctx, "k", changedRecord("A", "B")))
	got, err := o.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.NewName)

	require.NoError(t, o.Delete(ctx, "k"))
	got, err = o.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOwner_ClosedRejects(t *testing.T) {
	o, _ := newTestOwner(t)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	_, err := o.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOwner_CancelledContext(t *testing.T) {
	o, _ := newTestOwner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Put(ctx, "k", changedRecord("A", "B"))
	// Either the cancellation wins or the owner accepts the request first.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestOwner_PutIfAbsent(t *testing.T) {
	o, _ := newTestOwner(t)
	ctx := context.Background()

	existing, err := o.PutIfAbsent(ctx, "k", changedRecord("A", "B"))
	require.NoError(t, err)
	assert.Nil(t, existing)

	existing, err = o.PutIfAbsent(ctx, "k", changedRecord("A", "C"))
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "B", existing.NewName)

	got, err := o.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.NewName)
}

func TestOwner_PutIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	o, _ := newTestOwner(t)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stored []string
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("new-%02d", i)
			existing, err := o.PutIfAbsent(ctx, "k", changedRecord("A", name))
			assert.NoError(t, err)
			if existing == nil {
				mu.Lock()
				stored = append(stored, name)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, stored, 1)
	got, err := o.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored[0], got.NewName)
}
