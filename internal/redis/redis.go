package redis

import (
	"context"
	"destored/internal/storage"
	"destored/pkg/client/redis"
	"errors"
	"fmt"
	redis2 "github.com/redis/go-redis/v9"
	"time"
)

// backendRedis stores credential keys under "<prefix>:<key>".
type backendRedis struct {
	Client redis.Client
	Prefix string
	TTL    time.Duration
}

func NewBackend(client redis.Client, prefix string, ttl time.Duration) storage.Backend {
	return &backendRedis{Client: client, Prefix: prefix, TTL: ttl}
}

func (r *backendRedis) key(k string) string {
	if r.Prefix == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", r.Prefix, k)
}

func (r *backendRedis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis2.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *backendRedis) Set(ctx context.Context, key string, value string) error {
	if err := r.Client.Set(ctx, r.key(key), value, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *backendRedis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}

	err := r.Client.Del(ctx, full...).Err()
	if err != nil && !errors.Is(err, redis2.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
