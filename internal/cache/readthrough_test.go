package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache[V any] struct{}

func (brokenCache[V]) Get(context.Context, string) (V, bool, error) {
	var zero V
	return zero, false, errors.New("connection reset")
}

func (brokenCache[V]) Set(context.Context, string, V, time.Duration) error {
	return errors.New("connection reset")
}

func (brokenCache[V]) Delete(context.Context, string) error { return nil }
func (brokenCache[V]) Clear(context.Context) error          { return nil }

func TestReadThrough_LoadsOnce(t *testing.T) {
	ctx := context.Background()
	rt := NewReadThrough[[]string]("test", NewMemory[[]string](0), time.Minute, slog.Default())

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"iphone"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := rt.Get(ctx, "iph", load)
		require.NoError(t, err)
		assert.Equal(t, []string{"iphone"}, v)
	}
	assert.Equal(t, 1, calls)
}

func TestReadThrough_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	rt := NewReadThrough[int]("test", NewMemory[int](0), time.Minute, slog.Default())

	boom := errors.New("boom")
	_, err := rt.Get(ctx, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := rt.Get(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestReadThrough_UncachedValueIsReturnedNotStored(t *testing.T) {
	ctx := context.Background()
	rt := NewReadThrough[[]string]("test", NewMemory[[]string](0), time.Minute, slog.Default())

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return nil, Uncached([]string{"fallback"})
	}

	v, err := rt.Get(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, v)

	v, err = rt.Get(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, v)
	assert.Equal(t, 2, calls)
}

func TestReadThrough_CancelledCallerStillWarmsCache(t *testing.T) {
	mem := NewMemory[int](0)
	rt := NewReadThrough[int]("test", mem, time.Minute, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := rt.Get(ctx, "k", func(context.Context) (int, error) {
		cancel()
		return 42, nil
	})
	require.NoError(t, err)

	v, ok, err := mem.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestReadThrough_BrokenCacheFallsThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rt := NewReadThrough[string]("test", brokenCache[string]{}, time.Minute, logger)

	v, err := rt.Get(context.Background(), "k", func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Contains(t, buf.String(), "cache read failed")
	assert.Contains(t, buf.String(), "cache write failed")
}

func TestReadThrough_Invalidate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory[string](0)
	rt := NewReadThrough[string]("test", mem, time.Minute, slog.Default())
	_, err := rt.Get(ctx, "k", func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)

	require.NoError(t, rt.Invalidate(ctx))
	assert.Zero(t, mem.Len())
}

func TestReadThrough_ConcurrentMissesShareOneLoad(t *testing.T) {
	rt := NewReadThrough[string]("test", NewMemory[string](0), time.Minute, slog.Default())

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := rt.Get(context.Background(), "k", load)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// Let every caller reach the in-flight load before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"v", "v", "v", "v", "v"}, results)
}

func TestReadThrough_FollowerReloadsWhenLeaderCancelled(t *testing.T) {
	rt := NewReadThrough[string]("test", NewMemory[string](0), time.Minute, slog.Default())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	started := make(chan struct{})
	leaderDone := make(chan error, 1)
	go func() {
		_, err := rt.Get(leaderCtx, "k", func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		})
		leaderDone <- err
	}()
	<-started

	followerDone := make(chan string, 1)
	go func() {
		v, err := rt.Get(context.Background(), "k", func(context.Context) (string, error) { return "fresh", nil })
		assert.NoError(t, err)
		followerDone <- v
	}()

	time.Sleep(50 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderDone, context.Canceled)
	assert.Equal(t, "fresh", <-followerDone)
}
