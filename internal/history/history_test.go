package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, 24*time.Hour),
	}
}

func TestStore_RecentMostRecentFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := s.Recent(ctx, "s-1")
			require.NoError(t, err)
			assert.Empty(t, got)

			for _, q := range []string{"iphone", "laptop", "  kem  ", ""} {
				require.NoError(t, s.Save(ctx, "s-1", q))
			}
			got, err = s.Recent(ctx, "s-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"kem", "laptop", "iphone"}, got)
		})
	}
}

func TestStore_DuplicatePromoted(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, q := range []string{"iphone", "laptop", "kem", "iphone", "iPhone"} {
				require.NoError(t, s.Save(ctx, "s-1", q))
			}
			got, err := s.Recent(ctx, "s-1")
			require.NoError(t, err)
			// Only exact matches are duplicates.
			assert.Equal(t, []string{"iPhone", "iphone", "kem", "laptop"}, got)
		})
	}
}

func TestStore_CappedAtTen(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 15; i++ {
				require.NoError(t, s.Save(ctx, "s-1", fmt.Sprintf("q%d", i)))
			}
			got, err := s.Recent(ctx, "s-1")
			require.NoError(t, err)
			require.Len(t, got, MaxQueries)
			assert.Equal(t, "q14", got[0])
			assert.Equal(t, "q5", got[MaxQueries-1])
		})
	}
}

func TestStore_ClearAndIsolation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, "s-1", "iphone"))
			require.NoError(t, s.Save(ctx, "s-2", "laptop"))

			require.NoError(t, s.Clear(ctx, "s-1"))
			got, err := s.Recent(ctx, "s-1")
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = s.Recent(ctx, "s-2")
			require.NoError(t, err)
			assert.Equal(t, []string{"laptop"}, got)
		})
	}
}

func TestStore_Clicks(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clicks := []domain.Click{
				{ProductID: "p-003", At: now.Add(-30 * 24 * time.Hour)},
				{ProductID: "p-001", At: now.Add(-2 * time.Hour)},
				{ProductID: "p-002", At: now.Add(-time.Hour)},
				{ProductID: "", At: now},
			}
			for _, c := range clicks {
				require.NoError(t, s.RecordClick(ctx, "s-1", c))
			}

			got, err := s.Clicks(ctx, "s-1", now.Add(-7*24*time.Hour))
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "p-002", got[0].ProductID)
			assert.Equal(t, "p-001", got[1].ProductID)
			assert.True(t, got[0].At.Equal(now.Add(-time.Hour)))

			// Clearing search history keeps clicks.
			require.NoError(t, s.Clear(ctx, "s-1"))
			got, err = s.Clicks(ctx, "s-1", time.Time{})
			require.NoError(t, err)
			assert.Len(t, got, 3)
		})
	}
}

func TestStore_ClicksCapped(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < MaxClicks+5; i++ {
				require.NoError(t, s.RecordClick(ctx, "s-1", domain.Click{ProductID: fmt.Sprintf("p-%d", i), At: now}))
			}
			got, err := s.Clicks(ctx, "s-1", time.Time{})
			require.NoError(t, err)
			assert.Len(t, got, MaxClicks)
			assert.Equal(t, fmt.Sprintf("p-%d", MaxClicks+4), got[0].ProductID)
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client, time.Hour)

	require.NoError(t, s.Save(context.Background(), "s-1", "iphone"))
	assert.Equal(t, time.Hour, mr.TTL(queriesPrefix+"s-1"))

	mr.FastForward(time.Hour)
	got, err := s.Recent(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrepend(t *testing.T) {
	assert.Equal(t, []string{"a"}, prepend(nil, "a"))
	assert.Equal(t, []string{"b", "a", "c"}, prepend([]string{"a", "b", "c"}, "b"))
}
