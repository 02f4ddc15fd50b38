package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Backend is the durable key-value layer under the credential store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
