package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront-search/internal/domain"
)

const (
	queriesPrefix = "history:q:"
	clicksPrefix  = "history:c:"
)

// RedisStore keeps history in Redis lists that expire ttl after the last write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Recent(ctx context.Context, owner string) ([]string, error) {
	queries, err := s.client.LRange(ctx, queriesPrefix+owner, 0, MaxQueries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange history: %w", err)
	}
	return queries, nil
}

// Save removes any earlier copy of query, pushes it to the head and trims the
// list, all in one transaction.
func (s *RedisStore) Save(ctx context.Context, owner, query string) error {
	query = normalize(query)
	if query == "" || owner == "" {
		return nil
	}
	key := queriesPrefix + owner

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, key, 0, query)
		pipe.LPush(ctx, key, query)
		pipe.LTrim(ctx, key, 0, MaxQueries-1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save history: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, queriesPrefix+owner).Err(); err != nil {
		return fmt.Errorf("redis del history: %w", err)
	}
	return nil
}

func (s *RedisStore) RecordClick(ctx context.Context, owner string, click domain.Click) error {
	if owner == "" || click.ProductID == "" {
		return nil
	}
	data, err := json.Marshal(click)
	if err != nil {
		return fmt.Errorf("marshal click: %w", err)
	}
	key := clicksPrefix + owner

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, MaxClicks-1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record click: %w", err)
	}
	return nil
}

func (s *RedisStore) Clicks(ctx context.Context, owner string, since time.Time) ([]domain.Click, error) {
	raw, err := s.client.LRange(ctx, clicksPrefix+owner, 0, MaxClicks-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange clicks: %w", err)
	}

	out := make([]domain.Click, 0, len(raw))
	for _, item := range raw {
		var c domain.Click
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("unmarshal click: %w", err)
		}
		if !c.At.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
