package bootstrap

import (
	"context"
	"destored/internal/credentials"
	"destored/internal/model"
	"destored/internal/session"
	"log/slog"
	"sync"
	"sync/atomic"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
}

// Bootstrapper rebuilds the session from persisted credentials once per process.
// Afterwards the session is either fully populated or empty.
type Bootstrapper struct {
	store     *credentials.Store
	refresher TokenRefresher
	holder    *session.Holder
	log       *slog.Logger

	once    sync.Once
	loading atomic.Bool
	done    chan struct{}
	result  model.Session
}

func New(store *credentials.Store, refresher TokenRefresher, holder *session.Holder, log *slog.Logger) *Bootstrapper {
	b := &Bootstrapper{
		store:     store,
		refresher: refresher,
		holder:    holder,
		log:       log,
		done:      make(chan struct{}),
	}
	b.loading.Store(true)
	return b
}

// Loading is true until Run has completed.
func (b *Bootstrapper) Loading() bool {
	return b.loading.Load()
}

// Done is closed when Run has completed.
func (b *Bootstrapper) Done() <-chan struct{} {
	return b.done
}

// Run restores the session. Later calls return the first result.
func (b *Bootstrapper) Run(ctx context.Context) model.Session {
	b.once.Do(func() {
		defer close(b.done)
		defer b.loading.Store(false)

		b.result = b.restore(ctx)
		if !b.result.Empty() {
			// nothing left to persist, restore already did it
			_, _ = b.holder.Set(b.result, nil)
		}
	})
	return b.result
}

func (b *Bootstrapper) restore(ctx context.Context) model.Session {
	const op = "bootstrap.restore"
	log := b.log.With(slog.String("op", op))

	// 1. persisted profile and access token
	user, err := b.store.User(ctx)
	if err != nil {
		log.Warn("persisted user unreadable, clearing credentials", slog.String("error", err.Error()))
		return b.reset(ctx, log)
	}
	access := b.store.Token(ctx)
	refreshToken := b.store.RefreshToken(ctx)

	// 2. valid token: adopt without touching the network
	if user != nil && access != "" && b.store.Valid(access) {
		log.Info("session restored", slog.String("user_id", user.ID))
		return model.Session{AccessToken: access, RefreshToken: refreshToken, User: user}
	}

	// 3. one refresh attempt
	if refreshToken != "" && user != nil {
		pair, err := b.refresher.Refresh(ctx, refreshToken)
		if err != nil && ctx.Err() != nil {
			// interrupted, the stored refresh token may still be good
			log.Info("bootstrap cancelled", slog.String("error", err.Error()))
			return model.Session{}
		}
		if err != nil {
			log.Warn("refresh during bootstrap failed", slog.String("error", err.Error()))
			return b.reset(ctx, log)
		}
		if err := b.store.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			log.Error("failed to persist refreshed tokens", slog.String("error", err.Error()))
			return b.reset(ctx, log)
		}
		if pair.RefreshToken != "" {
			refreshToken = pair.RefreshToken
		}

		log.Info("session restored via refresh", slog.String("user_id", user.ID))
		return model.Session{AccessToken: pair.AccessToken, RefreshToken: refreshToken, User: user}
	}

	// 4. nothing recoverable
	return b.reset(ctx, log)
}

func (b *Bootstrapper) reset(ctx context.Context, log *slog.Logger) model.Session {
	if err := b.store.Clear(ctx); err != nil {
		log.Error("failed to clear credentials", slog.String("error", err.Error()))
	}
	return model.Session{}
}
