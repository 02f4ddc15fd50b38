package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithTries_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := doWithTries(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoWithTries_ReturnsLastError(t *testing.T) {
	calls := 0
	err := doWithTries(context.Background(), func() error {
		calls++
		return errors.New("refused")
	}, 3, time.Millisecond)

	require.EqualError(t, err, "refused")
	assert.Equal(t, 3, calls)
}

func TestDoWithTries_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := doWithTries(ctx, func() error {
		return errors.New("refused")
	}, 3, time.Hour)

	require.ErrorIs(t, err, context.Canceled)
}
