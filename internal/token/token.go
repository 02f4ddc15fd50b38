package token

import (
	"destored/internal/model"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"strings"
	"time"
)

var (
	ErrRefreshToken = errors.New("refresh token not valid")
	ErrAccessToken  = errors.New("access token not valid")
	ErrUndecodable  = errors.New("token expiry cannot be decoded")
)

var NowTimeFunc = time.Now

// Expiry reads the exp claim of a three-part token without verifying its signature.
// Signature checks belong to the server.
func Expiry(raw string) (time.Time, error) {
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, ErrUndecodable
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrUndecodable
	}
	return exp.Time, nil
}

// TimeToExpiry is Expiry relative to NowTimeFunc.
func TimeToExpiry(raw string) (time.Duration, error) {
	exp, err := Expiry(raw)
	if err != nil {
		return 0, err
	}
	return exp.Sub(NowTimeFunc()), nil
}

type Generate interface {
	GenerateAccessToken(user *model.User) (string, error)
	GenerateRefreshToken(userID string) (string, error)
	VerifyRefreshToken(tokenString string) (jwt.MapClaims, error)
	VerifyAccessToken(tokenString string) (jwt.MapClaims, error)
}

// JWTManager issues and verifies HS256 tokens for the development API.
type JWTManager struct {
	accessSecret    string
	refreshSecret   string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:    accessSecret,
		refreshSecret:   refreshSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

func (m *JWTManager) GenerateAccessToken(u *model.User) (string, error) {
	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"role":  string(u.Role),
		"email": u.Email,
		"typ":   "access",
		"jti":   uuid.NewString(),
		"exp":   now.Add(m.accessTokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.accessSecret))
}

func (m *JWTManager) GenerateRefreshToken(userID string) (string, error) {
	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": "refresh",
		"jti": uuid.NewString(),
		"exp": now.Add(m.refreshTokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.refreshSecret))
}

func (m *JWTManager) VerifyRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := m.verify(tokenString, m.refreshSecret, "refresh")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshToken, err)
	}
	return claims, nil
}

func (m *JWTManager) VerifyAccessToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := m.verify(tokenString, m.accessSecret, "access")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessToken, err)
	}
	return claims, nil
}

func (m *JWTManager) verify(tokenString, secret, typ string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(NowTimeFunc), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims["typ"] != typ {
		return nil, fmt.Errorf("unexpected token type %v", claims["typ"])
	}
	return claims, nil
}
