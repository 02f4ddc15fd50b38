package app

import (
	"context"
	"destored/internal/bootstrap"
	"destored/internal/config"
	"destored/internal/credentials"
	"destored/internal/httpclient"
	"destored/internal/model"
	"destored/internal/provider/api"
	redis2 "destored/internal/redis"
	"destored/internal/refresh"
	"destored/internal/scheduler"
	"destored/internal/servises/auth"
	"destored/internal/session"
	"destored/internal/storage"
	"destored/pkg/client/redis"
	"fmt"
	"log/slog"
)

// App wires the session client together.
type App struct {
	Auth         *auth.Auth
	Bootstrapper *bootstrap.Bootstrapper
	Scheduler    *scheduler.Scheduler
	Store        *credentials.Store

	log     *slog.Logger
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	backend, closer, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store := credentials.New(backend, cfg.Refresh.Undecodable, log)
	client := httpclient.New(cfg.BaseURL(), cfg.API.Timeout, store, log)
	provider := api.NewProvider(client, log)

	holder := session.NewHolder()
	refresher := refresh.New(provider, log)
	sched := scheduler.New(holder, store, refresher, cfg.Refresh, log)

	a := &App{
		Auth:         auth.NewAuth(provider, store, holder, sched, log),
		Bootstrapper: bootstrap.New(store, refresher, holder, log),
		Scheduler:    sched,
		Store:        store,
		log:          log,
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	log.Debug("client initialised",
		slog.String("env", cfg.Env),
		slog.String("base_url", cfg.BaseURL()),
		slog.String("store", cfg.Store.Type))

	return a, nil
}

// Start restores the persisted session and keeps it refreshed until ctx is done.
func (a *App) Start(ctx context.Context) model.Session {
	restored := a.Bootstrapper.Run(ctx)
	go a.Scheduler.Watch(ctx)
	return restored
}

func (a *App) Stop() {
	a.Scheduler.Deactivate()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func() error, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		return storage.NewMemory(), nil, nil
	case config.StoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis2.NewBackend(client, cfg.Store.Prefix, 0), client.Close, nil
	default:
		return storage.NewFile(cfg.Store.Path), nil, nil
	}
}
