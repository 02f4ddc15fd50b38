package main

import (
	"context"
	"destored/internal/app"
	"destored/internal/app/devapi"
	"destored/internal/config"
	"destored/internal/logger"
	"destored/internal/model"
	"errors"
	"flag"
	"fmt"
	"github.com/joho/godotenv"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: destored [-config path] <command> [flags]

commands:
  status               show the restored session
  login                -email -password [-remember]
  logout
  register             -email -password -first -last -role [-phone]
  verify-email         -token
  resend-verification  -email
  forgot-password      -email
  reset-password       -token -password
  change-password      -current -new
  run                  restore the session and keep it refreshed until interrupted
  mock-server          serve the development API
`

func main() {

	_ = godotenv.Load(".env")

	cfg := config.GetConfig()
	log := setupSlog(cfg.Env)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log, args[0], args[1:]); err != nil {
		log.Error("command failed", slog.String("command", args[0]), slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, cmd string, args []string) error {
	if cmd == "mock-server" {
		return serveMock(ctx, cfg, log)
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer application.Stop()

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	remember := fs.Bool("remember", false, "ask for a long-lived session")
	tok := fs.String("token", "", "token received by email")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	role := fs.String("role", string(model.RoleClient), "client or professional")
	phone := fs.String("phone", "", "phone number")
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a := application.Auth

	switch cmd {
	case "status":
		printSession(application.Bootstrapper.Run(ctx))
		return nil

	case "login":
		s, err := a.Login(ctx, *email, *password, *remember)
		if err != nil {
			return err
		}
		printSession(s)
		return nil

	case "logout":
		application.Bootstrapper.Run(ctx)
		if err := a.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "register":
		return printMessage(a.Register(ctx, model.RegisterRequest{
			Email:           *email,
			Password:        *password,
			ConfirmPassword: *password,
			FirstName:       *first,
			LastName:        *last,
			Role:            model.Role(*role),
			Phone:           *phone,
			AcceptTerms:     true,
		}))

	case "verify-email":
		return printMessage(a.VerifyEmail(ctx, *tok))

	case "resend-verification":
		return printMessage(a.ResendVerification(ctx, *email))

	case "forgot-password":
		return printMessage(a.ForgotPassword(ctx, *email))

	case "reset-password":
		return printMessage(a.ResetPassword(ctx, *tok, *password, *password))

	case "change-password":
		application.Bootstrapper.Run(ctx)
		return printMessage(a.ChangePassword(ctx, *current, *next, *next))

	case "run":
		printSession(application.Start(ctx))

		events, unsubscribe := a.Subscribe()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				log.Info("Gracefully stopped")
				return nil
			case e := <-events:
				log.Info("session event",
					slog.String("type", string(e.Type)),
					slog.String("reason", e.Reason),
					slog.Uint64("generation", e.Generation))
			}
		}
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func serveMock(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	server, err := devapi.New(log, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	server.Stop()
	log.Info("Gracefully stopped")
	return nil
}

func printSession(s model.Session) {
	if s.Empty() {
		fmt.Println("not logged in")
		return
	}
	fmt.Printf("logged in as %s (%s, %s)\n", s.User.Email, s.User.ID, s.User.Role)
}

func printMessage(msg *model.Message, err error) error {
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.New("empty response")
	}
	fmt.Println(msg.Message)
	return nil
}

func setupSlog(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDevelopment:
		log = slog.New(logger.NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvTest:
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
