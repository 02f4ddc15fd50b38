package redis

import (
	"context"
	"destored/internal/config"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

// Client is the subset of go-redis used by the credential backend.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const retryDelay = 2 * time.Second

func NewClient(ctx context.Context, sc config.StorageRedis) (client *redis.Client, err error) {
	attempts := sc.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	err = doWithTries(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if client != nil {
			_ = client.Close()
		}
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", sc.Host, sc.Port),
			Password: sc.Password,
			DB:       sc.DB,
		})

		return client.Ping(pingCtx).Err()
	}, attempts, retryDelay)

	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", attempts, err)
	}

	return client, nil
}

func doWithTries(ctx context.Context, fn func() error, attempts int, delay time.Duration) (err error) {
	for attempts > 0 {
		if err = fn(); err == nil {
			return nil
		}

		attempts--
		if attempts == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
