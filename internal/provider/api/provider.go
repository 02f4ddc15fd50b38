package api

import (
	"context"
	"destored/internal/httpclient"
	"destored/internal/model"
	"destored/internal/provider"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	pathRegister           = "/register"
	pathLogin              = "/auth/login"
	pathRefresh            = "/refresh"
	pathVerifyEmail        = "/verify-email"
	pathResendVerification = "/resend-verification"
	pathForgotPassword     = "/forgot-password"
	pathResetPassword      = "/reset-password"
	pathChangePassword     = "/change-password"
	pathLogout             = "/logout"
)

// Provider is the typed view of the Destored REST API.
type Provider interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginData, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context) (*model.Message, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.Message, error)
	VerifyEmail(ctx context.Context, token string) (*model.Message, error)
	ResendVerification(ctx context.Context, email string) (*model.Message, error)
	ForgotPassword(ctx context.Context, email string) (*model.Message, error)
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (*model.Message, error)
	ChangePassword(ctx context.Context, req model.ChangePasswordRequest) (*model.Message, error)
}

type Doer interface {
	Do(ctx context.Context, r httpclient.Request) (*httpclient.Response, error)
}

type apiProvider struct {
	client Doer
	log    *slog.Logger
}

func NewProvider(client Doer, log *slog.Logger) Provider {
	return &apiProvider{client: client, log: log}
}

func (p *apiProvider) Login(ctx context.Context, req model.LoginRequest) (*model.LoginData, error) {
	const op = "api.Login"

	var out model.LoginResponse
	if err := p.post(ctx, pathLogin, req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if out.Status != "" && out.Status != "success" {
		return nil, fmt.Errorf("%s: %w: %s", op, provider.ErrUnexpected, out.Status)
	}
	if out.Data.AccessToken == "" || out.Data.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, provider.ErrMissingTokens)
	}
	if out.Data.User.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, provider.ErrMissingUser)
	}

	p.log.Debug("login accepted",
		slog.String("user_id", out.Data.User.ID),
		slog.String("role", string(out.Data.User.Role)))

	return &out.Data, nil
}

func (p *apiProvider) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	const op = "api.Refresh"

	var out model.TokenPair
	if err := p.post(ctx, pathRefresh, model.RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return model.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if out.AccessToken == "" {
		return model.TokenPair{}, fmt.Errorf("%s: %w", op, provider.ErrMissingTokens)
	}

	p.log.Debug("access token refreshed", slog.Bool("rotated", out.RefreshToken != ""))
	return out, nil
}

func (p *apiProvider) Logout(ctx context.Context) (*model.Message, error) {
	return p.message(ctx, "api.Logout", pathLogout, nil)
}

func (p *apiProvider) Register(ctx context.Context, req model.RegisterRequest) (*model.Message, error) {
	return p.message(ctx, "api.Register", pathRegister, req)
}

func (p *apiProvider) VerifyEmail(ctx context.Context, token string) (*model.Message, error) {
	return p.message(ctx, "api.VerifyEmail", pathVerifyEmail, model.VerifyEmailRequest{Token: token})
}

func (p *apiProvider) ResendVerification(ctx context.Context, email string) (*model.Message, error) {
	return p.message(ctx, "api.ResendVerification", pathResendVerification, model.EmailRequest{Email: email})
}

func (p *apiProvider) ForgotPassword(ctx context.Context, email string) (*model.Message, error) {
	return p.message(ctx, "api.ForgotPassword", pathForgotPassword, model.EmailRequest{Email: email})
}

func (p *apiProvider) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (*model.Message, error) {
	return p.message(ctx, "api.ResetPassword", pathResetPassword, req)
}

func (p *apiProvider) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) (*model.Message, error) {
	return p.message(ctx, "api.ChangePassword", pathChangePassword, req)
}

func (p *apiProvider) message(ctx context.Context, op, path string, body any) (*model.Message, error) {
	var out model.Message
	if err := p.post(ctx, path, body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

func (p *apiProvider) post(ctx context.Context, path string, body any, out any) error {
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
