package token

import (
	"destored/internal/model"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsigned(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return raw
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Minute).Truncate(time.Second)

	got, err := Expiry(unsigned(t, jwt.MapClaims{"exp": exp.Unix()}))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))
}

func TestExpiry_Undecodable(t *testing.T) {
	cases := map[string]string{
		"opaque":     "opaque-token",
		"empty":      "",
		"bad base64": "a.b.c",
		"no exp":     unsigned(t, jwt.MapClaims{"sub": "u1"}),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Expiry(raw)
			require.ErrorIs(t, err, ErrUndecodable)
		})
	}
}

func TestTimeToExpiry_UsesClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { NowTimeFunc = time.Now })

	ttl, err := TimeToExpiry(unsigned(t, jwt.MapClaims{"exp": now.Add(120 * time.Second).Unix()}))
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, ttl)
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := NewJWTManager("access", "refresh", time.Minute, time.Hour)
	user := &model.User{ID: "u1", Email: "a@b.com", Role: model.RoleClient}

	access, err := m.GenerateAccessToken(user)
	require.NoError(t, err)
	refresh, err := m.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "client", claims["role"])

	claims, err = m.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])

	// access and refresh tokens are not interchangeable
	_, err = m.VerifyRefreshToken(access)
	require.ErrorIs(t, err, ErrRefreshToken)
	_, err = m.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, ErrAccessToken)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("access", "refresh", -time.Minute, time.Hour)

	access, err := m.GenerateAccessToken(&model.User{ID: "u1"})
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(access)
	require.ErrorIs(t, err, ErrAccessToken)

	exp, err := Expiry(access)
	require.NoError(t, err)
	assert.True(t, exp.Before(time.Now()))
}
