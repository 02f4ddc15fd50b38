package tests

import (
	"context"
	"destored/internal/tests/suite"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_ValidTokenRestoresWithoutRefresh(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)
	sess, err := s.Auth.Login(ctx, "jane@example.com", password, true)
	require.NoError(t, err)

	restored := s.Bootstrapper.Run(ctx)

	require.False(t, restored.Empty())
	assert.Equal(t, sess.AccessToken, restored.AccessToken)
	assert.Equal(t, sess.RefreshToken, restored.RefreshToken)
	assert.Equal(t, sess.User.ID, restored.User.ID)
	assert.False(t, s.Bootstrapper.Loading())
}

func TestBootstrap_InvalidTokenRefreshesOnce(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)
	sess, err := s.Auth.Login(ctx, "jane@example.com", password, true)
	require.NoError(t, err)

	// an access token whose expiry cannot be read counts as expired
	require.NoError(t, s.Store.SaveTokens(ctx, "opaque", ""))

	restored := s.Bootstrapper.Run(ctx)

	require.False(t, restored.Empty())
	assert.NotEqual(t, "opaque", restored.AccessToken)
	assert.NotEqual(t, sess.RefreshToken, restored.RefreshToken, "refresh token rotated")
	assert.Equal(t, restored.AccessToken, s.Store.Token(ctx))
	assert.Equal(t, restored.RefreshToken, s.Store.RefreshToken(ctx))
	assert.True(t, s.Store.IsTokenValid(ctx))
	assert.Equal(t, restored, s.Auth.Session())
}

func TestBootstrap_RejectedRefreshClears(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	user := s.Account("jane@example.com", password)
	require.NoError(t, s.Store.SaveTokens(ctx, "opaque", "unknown-refresh"))
	require.NoError(t, s.Store.SaveUser(ctx, &user))

	restored := s.Bootstrapper.Run(ctx)

	assert.True(t, restored.Empty())
	assert.True(t, s.Auth.Session().Empty())
	assert.Empty(t, s.Store.Token(ctx))
	assert.Empty(t, s.Store.RefreshToken(ctx))
	u, err := s.Store.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestBootstrap_NothingStored(t *testing.T) {
	s := suite.New(t)

	restored := s.Bootstrapper.Run(context.Background())

	assert.True(t, restored.Empty())
	assert.False(t, s.Bootstrapper.Loading())
	select {
	case <-s.Bootstrapper.Done():
	default:
		t.Fatal("bootstrap should be done")
	}
}
