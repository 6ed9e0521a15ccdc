package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmptyCacheKey rejects writes and reads that would hit the bare namespace.
var ErrEmptyCacheKey = errors.New("cache key is empty")

// scanCount is the COUNT hint per SCAN round trip and the UNLINK batch size.
const scanCount = 200

// RedisCacheRepo is the Redis implementation of core.CacheRepository. It works against
// standalone, sentinel and cluster clients alike.
type RedisCacheRepo struct {
	client redis.UniversalClient
}

func NewRedisCacheRepo(client redis.UniversalClient) *RedisCacheRepo {
	return &RedisCacheRepo{client: client}
}

func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyCacheKey
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyCacheKey
	}
	b, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// DeletePrefix walks the keyspace with SCAN and removes matches with UNLINK in batches, so
// neither call blocks the server on a large keyspace.
func (r *RedisCacheRepo) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, ErrEmptyCacheKey
	}

	var removed int64
	keys := make([]string, 0, scanCount)
	unlink := func() error {
		if len(keys) == 0 {
			return nil
		}
		n, err := r.client.Unlink(ctx, keys...).Result()
		removed += n
		keys = keys[:0]
		if err != nil {
			return fmt.Errorf("redis unlink: %w", err)
		}
		return nil
	}

	iter := r.client.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if keys = append(keys, iter.Val()); len(keys) == scanCount {
			if err := unlink(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	return removed, unlink()
}

// Health pings the server.
func (r *RedisCacheRepo) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
