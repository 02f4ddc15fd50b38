package auth

import (
	"context"
	"destored/internal/credentials"
	"destored/internal/httpclient"
	"destored/internal/model"
	"destored/internal/provider/api"
	"destored/internal/session"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"log/slog"
)

var ErrNotAuthenticated = errors.New("no active session")

// Deactivator stops background token refresh.
type Deactivator interface {
	Deactivate()
}

// Auth is the entry point for every change to the session.
type Auth struct {
	provider  api.Provider
	store     *credentials.Store
	holder    *session.Holder
	scheduler Deactivator
	validate  *validator.Validate
	log       *slog.Logger
}

func NewAuth(provider api.Provider, store *credentials.Store, holder *session.Holder, scheduler Deactivator, log *slog.Logger) *Auth {
	return &Auth{
		provider:  provider,
		store:     store,
		holder:    holder,
		scheduler: scheduler,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
	}
}

func (a *Auth) Login(ctx context.Context, email, password string, rememberMe bool) (model.Session, error) {
	const op = "auth.Login"

	req := model.LoginRequest{Email: email, Password: password, RememberMe: rememberMe}
	if err := a.check(req); err != nil {
		return model.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	// 1. credentials go to the server, nothing local changes yet
	data, err := a.provider.Login(ctx, req)
	if err != nil {
		a.log.Warn("login failed", "email", email, "error", err)
		return model.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	// 2. persist and publish the new session together
	user := data.User
	next := model.Session{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		User:         &user,
	}
	_, err = a.holder.Set(next, func() error {
		return a.persist(ctx, next)
	})
	if err != nil {
		a.log.Error("failed to persist session", "error", err)
		return model.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return next, nil
}

// persist replaces the stored credentials with s. On a partial write the previous
// credentials are put back, so a failed login leaves storage as it found it.
func (a *Auth) persist(ctx context.Context, s model.Session) error {
	prevAccess := a.store.Token(ctx)
	prevRefresh := a.store.RefreshToken(ctx)
	prevUser, _ := a.store.User(ctx)

	// 1. nothing from the previous session may survive next to the new tokens
	err := a.store.ClearTokens(ctx)
	if err == nil {
		err = a.store.SaveTokens(ctx, s.AccessToken, s.RefreshToken)
	}
	if err == nil {
		err = a.store.SaveUser(ctx, s.User)
	}
	if err == nil {
		return nil
	}

	// 2. roll back
	ctx = context.WithoutCancel(ctx)
	if rbErr := a.restore(ctx, prevAccess, prevRefresh, prevUser); rbErr != nil {
		a.log.Error("failed to restore previous credentials", "error", rbErr)
	}
	return err
}

func (a *Auth) restore(ctx context.Context, access, refresh string, user *model.User) error {
	if err := a.store.ClearTokens(ctx); err != nil {
		return err
	}
	if access != "" || refresh != "" {
		if err := a.store.SaveTokens(ctx, access, refresh); err != nil {
			return err
		}
	}
	if user != nil {
		return a.store.SaveUser(ctx, user)
	}
	return nil
}

// Logout tells the server (best effort) and then always tears down the local session.
func (a *Auth) Logout(ctx context.Context) error {
	const op = "auth.Logout"

	current, _ := a.holder.Snapshot()
	if !current.Empty() || a.store.Token(ctx) != "" {
		if _, err := a.provider.Logout(ctx); err != nil {
			a.log.Warn("server logout failed, clearing local session anyway", "error", err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Deactivate()
	}

	err := a.holder.Clear("logout", func() error {
		return a.store.Clear(context.WithoutCancel(ctx))
	})
	if err != nil {
		a.log.Error("failed to clear credentials", "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	if current.User != nil {
		a.log.Info("user logged out", "user_id", current.User.ID)
	}
	return nil
}

// Register does not start a session; the account must be verified first.
func (a *Auth) Register(ctx context.Context, req model.RegisterRequest) (*model.Message, error) {
	const op = "auth.Register"

	if err := a.check(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) (*model.Message, error) {
	const op = "auth.VerifyEmail"

	if err := a.check(model.VerifyEmailRequest{Token: token}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.VerifyEmail(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (a *Auth) ResendVerification(ctx context.Context, email string) (*model.Message, error) {
	const op = "auth.ResendVerification"

	if err := a.check(model.EmailRequest{Email: email}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.ResendVerification(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (a *Auth) ForgotPassword(ctx context.Context, email string) (*model.Message, error) {
	const op = "auth.ForgotPassword"

	if err := a.check(model.EmailRequest{Email: email}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.ForgotPassword(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (a *Auth) ResetPassword(ctx context.Context, token, password, confirm string) (*model.Message, error) {
	const op = "auth.ResetPassword"

	req := model.ResetPasswordRequest{Token: token, Password: password, ConfirmPassword: confirm}
	if err := a.check(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.ResetPassword(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (a *Auth) ChangePassword(ctx context.Context, current, next, confirm string) (*model.Message, error) {
	const op = "auth.ChangePassword"

	if s, _ := a.holder.Snapshot(); s.Empty() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	req := model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next, ConfirmNewPassword: confirm}
	if err := a.check(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := a.provider.ChangePassword(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// Session returns a copy of the current session.
func (a *Auth) Session() model.Session {
	s, _ := a.holder.Snapshot()
	return s
}

func (a *Auth) Subscribe() (<-chan session.Event, func()) {
	return a.holder.Subscribe()
}

func (a *Auth) check(req any) error {
	if err := a.validate.Struct(req); err != nil {
		return httpclient.NewValidationError(err)
	}
	return nil
}
