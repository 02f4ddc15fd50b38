package refresh

import (
	"context"
	"destored/internal/model"
	"errors"
	"fmt"
	"golang.org/x/sync/singleflight"
	"log/slog"
)

var ErrNoRefreshToken = errors.New("no refresh token available")

type Provider interface {
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
}

// Refresher exchanges refresh tokens for new access tokens. Concurrent calls with the
// same refresh token share one request.
type Refresher struct {
	provider Provider
	group    singleflight.Group
	log      *slog.Logger
}

func New(provider Provider, log *slog.Logger) *Refresher {
	return &Refresher{provider: provider, log: log}
}

func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	const op = "refresh.Refresh"

	if refreshToken == "" {
		return model.TokenPair{}, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}

	// The shared call must not die with whichever caller started it.
	ch := r.group.DoChan(refreshToken, func() (interface{}, error) {
		return r.provider.Refresh(context.WithoutCancel(ctx), refreshToken)
	})

	select {
	case <-ctx.Done():
		return model.TokenPair{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			r.log.Warn("refresh failed", slog.String("error", res.Err.Error()))
			return model.TokenPair{}, fmt.Errorf("%s: %w", op, res.Err)
		}
		if res.Shared {
			r.log.Debug("refresh result shared with a concurrent caller")
		}
		return res.Val.(model.TokenPair), nil
	}
}
