package redis

import (
	"context"
	"destored/internal/storage"
	"destored/internal/tests/mock"
	"errors"
	"testing"
	"time"

	redis2 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBackend_Get(t *testing.T) {
	ctx := context.Background()
	client := mock.NewRedisClient()
	backend := NewBackend(client, "destored", 0)

	client.On("Get", tmock.Anything, "destored:token").
		Return(redis2.NewStringResult("A1", nil)).
		Once()
	client.On("Get", tmock.Anything, "destored:refreshToken").
		Return(redis2.NewStringResult("", redis2.Nil)).
		Once()

	v, err := backend.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "A1", v)

	_, err = backend.Get(ctx, "refreshToken")
	require.ErrorIs(t, err, storage.ErrNotFound)

	client.AssertExpectations(t)
}

func TestBackend_SetUsesTTL(t *testing.T) {
	client := mock.NewRedisClient()
	backend := NewBackend(client, "destored", time.Hour)

	client.On("Set", tmock.Anything, "destored:user", `{"id":"u1"}`, time.Hour).
		Return(redis2.NewStatusResult("OK", nil)).
		Once()

	require.NoError(t, backend.Set(context.Background(), "user", `{"id":"u1"}`))
	client.AssertExpectations(t)
}

func TestBackend_DeleteAll(t *testing.T) {
	client := mock.NewRedisClient()
	backend := NewBackend(client, "destored", 0)

	client.On("Del", tmock.Anything, []string{"destored:token", "destored:refreshToken"}).
		Return(redis2.NewIntResult(2, nil)).
		Once()

	require.NoError(t, backend.Delete(context.Background(), "token", "refreshToken"))
	client.AssertExpectations(t)
}

func TestBackend_ErrorsWrapped(t *testing.T) {
	client := mock.NewRedisClient()
	backend := NewBackend(client, "", 0)
	boom := errors.New("connection reset")

	client.On("Set", tmock.Anything, "token", "A", time.Duration(0)).
		Return(redis2.NewStatusResult("", boom)).
		Once()

	err := backend.Set(context.Background(), "token", "A")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
