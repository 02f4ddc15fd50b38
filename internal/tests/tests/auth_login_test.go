package tests

import (
	"context"
	"destored/internal/credentials"
	"destored/internal/httpclient"
	"destored/internal/session"
	"destored/internal/tests/suite"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "s3cret-pass"

func TestLogin_HappyPath(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	user := s.Account("jane@example.com", password)

	events, unsubscribe := s.Auth.Subscribe()
	defer unsubscribe()

	// 1. login
	sess, err := s.Auth.Login(ctx, "jane@example.com", password, true)
	require.NoError(t, err)

	// 2. the session is published
	require.NotNil(t, sess.User)
	assert.Equal(t, user.ID, sess.User.ID)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, sess, s.Auth.Session())

	e := <-events
	assert.Equal(t, session.EventStarted, e.Type)

	// 3. and persisted
	assert.Equal(t, sess.AccessToken, s.Store.Token(ctx))
	assert.Equal(t, sess.RefreshToken, s.Store.RefreshToken(ctx))
	stored, err := s.Store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.True(t, s.Store.IsTokenValid(ctx))
}

func TestLogin_WrongPassword(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)

	_, err := s.Auth.Login(ctx, "jane@example.com", "not-the-password", false)

	require.Error(t, err)
	assert.Equal(t, httpclient.KindApplication, httpclient.KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusOf(err))
	assert.True(t, s.Auth.Session().Empty())
	assert.Empty(t, s.Store.Token(ctx))
}

func TestLogin_ValidationNeverReachesServer(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: password},
		{name: "malformed email", email: "jane", password: password},
		{name: "empty password", email: "jane@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Auth.Login(ctx, tt.email, tt.password, false)

			require.Error(t, err)
			assert.Equal(t, httpclient.KindValidation, httpclient.KindOf(err))
			assert.Zero(t, httpclient.StatusOf(err))
		})
	}
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)
	second := s.Account("john@example.com", password)

	_, err := s.Auth.Login(ctx, "jane@example.com", password, false)
	require.NoError(t, err)

	sess, err := s.Auth.Login(ctx, "john@example.com", password, false)
	require.NoError(t, err)

	assert.Equal(t, second.ID, s.Auth.Session().User.ID)
	assert.Equal(t, sess.AccessToken, s.Store.Token(ctx))

	stored, err := s.Store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID)
}

func TestLogout_ClearsEverything(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)
	sess, err := s.Auth.Login(ctx, "jane@example.com", password, false)
	require.NoError(t, err)

	s.Scheduler.Activate(ctx)
	require.True(t, s.Scheduler.Active())

	require.NoError(t, s.Auth.Logout(ctx))

	assert.True(t, s.Auth.Session().Empty())
	assert.False(t, s.Scheduler.Active())
	for _, key := range []string{credentials.KeyToken, credentials.KeyRefreshToken, credentials.KeyUser} {
		_, err := s.Backend.Get(ctx, key)
		assert.Error(t, err, key)
	}

	// the server revoked the refresh token too
	require.NoError(t, s.Store.SaveTokens(ctx, "stale", sess.RefreshToken))
	require.NoError(t, s.Store.SaveUser(ctx, sess.User))

	restored := s.Bootstrapper.Run(ctx)

	assert.True(t, restored.Empty())
	assert.Empty(t, s.Store.RefreshToken(ctx))
}

func TestLogout_ServerRejectionStillClears(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	s.Account("jane@example.com", password)
	_, err := s.Auth.Login(ctx, "jane@example.com", password, false)
	require.NoError(t, err)

	// a token the server does not accept
	require.NoError(t, s.Store.SaveTokens(ctx, "bogus", ""))

	require.NoError(t, s.Auth.Logout(ctx))

	assert.True(t, s.Auth.Session().Empty())
	assert.Empty(t, s.Store.Token(ctx))
	assert.Empty(t, s.Store.RefreshToken(ctx))
}

func TestLogout_WithoutSessionIsIdempotent(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()

	require.NoError(t, s.Auth.Logout(ctx))
	require.NoError(t, s.Auth.Logout(ctx))

	assert.True(t, s.Auth.Session().Empty())
}
