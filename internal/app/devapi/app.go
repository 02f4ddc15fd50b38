package devapi

import (
	"context"
	"destored/internal/config"
	"destored/internal/mockapi"
	"destored/internal/sender"
	"destored/internal/token"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// App serves the development API on a TCP port.
type App struct {
	log    *slog.Logger
	server *http.Server
	port   int
}

func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "devapi.New"

	mailer, err := sender.NewEmailSender(cfg.SMTPConfig, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	manager := token.NewJWTManager(cfg.Mock.Token.AccessSecret, cfg.Mock.Token.RefreshSecret,
		cfg.Mock.Token.AccessTTL, cfg.Mock.Token.RefreshTTL)

	api := mockapi.NewServer(manager, mailer, mockapi.Options{
		CORSOrigins:  cfg.Mock.CORSOrigins,
		RateLimitRPM: cfg.Mock.RateLimitRPM,
	}, log)

	return &App{
		log:  log,
		port: cfg.Mock.Port,
		server: &http.Server{
			Handler:           api,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (a *App) Run() error {
	const op = "devapi.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("development api started", slog.String("addr", l.Addr().String()))

	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop drains in-flight requests for up to five seconds.
func (a *App) Stop() {
	const op = "devapi.Stop"

	a.log.With(slog.String("op", op)).
		Info("stopping development api", slog.Int("port", a.port))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
