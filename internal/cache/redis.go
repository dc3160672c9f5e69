package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// Redis is a Cache storing JSON-encoded values under a key prefix.
type Redis[V any] struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a cache whose keys live under "prefix:".
func NewRedis[V any](client *redis.Client, prefix string) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix + ":"}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var v V
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return v, false, nil
		}
		return v, false, fmt.Errorf("redis get %s: %w", r.prefix+key, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("unmarshal cached %s: %w", r.prefix+key, err)
	}
	return v, true, nil
}

func (r *Redis[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cached %s: %w", r.prefix+key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.prefix+key, err)
	}
	return nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.prefix+key, err)
	}
	return nil
}

// Clear deletes every key under the prefix, scanning in batches.
func (r *Redis[V]) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s*: %w", r.prefix, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %s*: %w", r.prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var _ Cache[string] = (*Redis[string])(nil)
