package credentials

import (
	"context"
	"destored/internal/config"
	"destored/internal/model"
	"destored/internal/storage"
	"destored/internal/token"
	"errors"
	"fmt"
	"github.com/goccy/go-json"
	"log/slog"
)

const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var ErrCorruptUser = errors.New("persisted user profile is corrupt")

// Store is the only owner of persisted token bytes and the cached profile.
type Store struct {
	backend storage.Backend
	policy  string
	log     *slog.Logger
}

// New builds a store. policy decides what IsTokenValid reports for tokens whose
// expiry cannot be decoded (config.UndecodableTrust or config.UndecodableRefresh).
func New(backend storage.Backend, policy string, log *slog.Logger) *Store {
	return &Store{backend: backend, policy: policy, log: log}
}

// SaveTokens overwrites the access token. The refresh token is only written when non-empty.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	const op = "credentials.SaveTokens"

	if err := s.backend.Set(ctx, KeyToken, access); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if refresh == "" {
		return nil
	}
	if err := s.backend.Set(ctx, KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Token returns the access token or "" when absent.
func (s *Store) Token(ctx context.Context) string {
	return s.read(ctx, KeyToken)
}

// RefreshToken returns the refresh token or "" when absent.
func (s *Store) RefreshToken(ctx context.Context) string {
	return s.read(ctx, KeyRefreshToken)
}

func (s *Store) read(ctx context.Context, key string) string {
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("credential read failed, treating as absent",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return ""
	}
	return v
}

func (s *Store) SaveUser(ctx context.Context, user *model.User) error {
	const op = "credentials.SaveUser"

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.backend.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// User returns (nil, nil) when no profile is stored and ErrCorruptUser when it does not parse.
func (s *Store) User(ctx context.Context) (*model.User, error) {
	const op = "credentials.User"

	raw, err := s.backend.Get(ctx, KeyUser)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrCorruptUser, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%s: %w: missing id", op, ErrCorruptUser)
	}
	return &user, nil
}

// ClearTokens removes both tokens. Safe to call repeatedly.
func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.backend.Delete(ctx, KeyToken, KeyRefreshToken); err != nil {
		return fmt.Errorf("credentials.ClearTokens: %w", err)
	}
	return nil
}

// Clear removes tokens and the cached profile.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, KeyToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("credentials.Clear: %w", err)
	}
	return nil
}

// IsTokenValid reports whether the stored access token is present and unexpired.
func (s *Store) IsTokenValid(ctx context.Context) bool {
	raw := s.Token(ctx)
	if raw == "" {
		return false
	}
	return s.Valid(raw)
}

// Valid applies the expiry check and the undecodable policy to raw.
func (s *Store) Valid(raw string) bool {
	ttl, err := token.TimeToExpiry(raw)
	if err != nil {
		s.log.Debug("access token expiry undecodable", slog.String("policy", s.policy))
		return s.policy == config.UndecodableTrust
	}
	return ttl > 0
}
