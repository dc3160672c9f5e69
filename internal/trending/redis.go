package trending

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKey = "trending:terms"

// RedisTracker keeps counts in a sorted set shared by every instance.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

// Increment bumps term and drops the least frequent terms beyond MaxTracked.
func (t *RedisTracker) Increment(ctx context.Context, term string) error {
	term = Normalize(term)
	if term == "" {
		return nil
	}
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, redisKey, 1, term)
		pipe.ZRemRangeByRank(ctx, redisKey, 0, -MaxTracked-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis increment trending: %w", err)
	}
	return nil
}

func (t *RedisTracker) Top(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	terms, err := t.client.ZRevRange(ctx, redisKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top trending: %w", err)
	}
	return terms, nil
}

func (t *RedisTracker) Frequencies(ctx context.Context) (map[string]int, error) {
	entries, err := t.client.ZRevRangeWithScores(ctx, redisKey, 0, MaxTracked-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis trending frequencies: %w", err)
	}
	out := make(map[string]int, len(entries))
	for _, z := range entries {
		term, ok := z.Member.(string)
		if !ok {
			continue
		}
		out[term] = int(z.Score)
	}
	return out, nil
}

var _ Tracker = (*RedisTracker)(nil)
