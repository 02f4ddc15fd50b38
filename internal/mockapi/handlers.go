package mockapi

import (
	"destored/internal/model"
	"errors"
	"github.com/goccy/go-json"
	"log/slog"
	"net/http"
)

const (
	msgRegistered   = "Registration successful. Please check your email to verify your account."
	msgVerified     = "Email verified successfully. You can now log in."
	msgResent       = "If the account exists and is not verified, a new verification email has been sent."
	msgForgot       = "If the account exists, a password reset email has been sent."
	msgReset        = "Password has been reset successfully."
	msgChanged      = "Password changed successfully."
	msgLoggedOut    = "Logged out successfully."
	msgInvalidInput = "Invalid request body"
)

// decode reads and validates a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, verifyToken, err := s.accounts.create(req, false)
	if errors.Is(err, ErrEmailTaken) {
		writeError(w, http.StatusConflict, "An account with this email already exists")
		return
	}
	if err != nil {
		s.log.Error("register failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if err := s.mailer.SendVerification(user.Email, user.FirstName, verifyToken); err != nil {
		s.log.Warn("verification email failed", slog.String("email", user.Email), slog.String("error", err.Error()))
	}

	s.log.Info("account registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	writeMessage(w, http.StatusCreated, msgRegistered)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.accounts.authenticate(req.Email, req.Password)
	switch {
	case errors.Is(err, ErrNotVerified):
		writeError(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	pair, err := s.issue(&user)
	if err != nil {
		s.log.Error("token issue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Status: "success",
		Data: model.LoginData{
			User:         user,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		},
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.tokens.VerifyRefreshToken(req.RefreshToken); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	userID, ok := s.accounts.rotateRefresh(req.RefreshToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Refresh token has been revoked")
		return
	}
	user, ok := s.accounts.user(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Account no longer exists")
		return
	}

	pair, err := s.issue(&user)
	if err != nil {
		s.log.Error("token issue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyEmailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.accounts.verify(req.Token); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	writeMessage(w, http.StatusOK, msgVerified)
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if user, tok := s.accounts.reissueVerification(req.Email); tok != "" {
		if err := s.mailer.SendVerification(user.Email, user.FirstName, tok); err != nil {
			s.log.Warn("verification email failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		}
	}
	writeMessage(w, http.StatusOK, msgResent)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if user, tok := s.accounts.issueReset(req.Email); tok != "" {
		if err := s.mailer.SendPasswordReset(user.Email, user.FirstName, tok); err != nil {
			s.log.Warn("reset email failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		}
	}
	writeMessage(w, http.StatusOK, msgForgot)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.accounts.resetPassword(req.Token, req.Password)
	if errors.Is(err, ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		s.log.Error("reset password failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Password reset failed")
		return
	}
	writeMessage(w, http.StatusOK, msgReset)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req model.ChangePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.accounts.changePassword(p.userID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	case errors.Is(err, ErrUnknownAccount):
		writeError(w, http.StatusUnauthorized, "Account no longer exists")
		return
	case err != nil:
		s.log.Error("change password failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Password change failed")
		return
	}
	writeMessage(w, http.StatusOK, msgChanged)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	s.accounts.logout(p.userID, p.jti, p.exp)
	s.log.Info("user logged out", slog.String("user_id", p.userID))
	writeMessage(w, http.StatusOK, msgLoggedOut)
}

func (s *Server) issue(user *model.User) (model.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}
	s.accounts.saveRefresh(refresh, user.ID)
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
