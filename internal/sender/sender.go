package sender

import (
	"bytes"
	"destored/internal/config"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/url"
)

type EmailSender interface {
	SendVerification(toEmail, name, token string) error
	SendPasswordReset(toEmail, name, token string) error
}

type TemplateData struct {
	Name    string
	Heading string
	Intro   string
	Action  string
	Link    string
	Token   string
	AppName string
}

const mailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Intro}}</p>
  <p><a href="{{.Link}}" style="background:#2f6fed;color:#fff;padding:10px 16px;text-decoration:none;border-radius:4px;">{{.Action}}</a></p>
  <p>Or paste this code into {{.AppName}}: <code>{{.Token}}</code></p>
</body>
</html>`

type sender struct {
	config   config.SMTPConfig
	template *template.Template
	log      *slog.Logger
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender delivers mail over SMTP. With no SMTP host configured, messages
// are only logged, which is enough for local development.
func NewEmailSender(cfg config.SMTPConfig, log *slog.Logger) (EmailSender, error) {
	tmpl, err := template.New("mail").Parse(mailTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	return &sender{
		config:   cfg,
		template: tmpl,
		log:      log,
		send:     smtp.SendMail,
	}, nil
}

func (s *sender) SendVerification(toEmail, name, token string) error {
	return s.deliver(toEmail, "Confirm your email", TemplateData{
		Name:    name,
		Heading: "Welcome to " + s.config.FromName,
		Intro:   "Please confirm your email address to activate your account.",
		Action:  "Verify email",
		Link:    s.link("/verify-email", token),
		Token:   token,
		AppName: s.config.FromName,
	})
}

func (s *sender) SendPasswordReset(toEmail, name, token string) error {
	return s.deliver(toEmail, "Reset your password", TemplateData{
		Name:    name,
		Heading: "Password reset",
		Intro:   "We received a request to reset your password. If it was not you, ignore this email.",
		Action:  "Choose a new password",
		Link:    s.link("/reset-password", token),
		Token:   token,
		AppName: s.config.FromName,
	})
}

func (s *sender) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", s.config.AppURL, path, url.QueryEscape(token))
}

func (s *sender) deliver(to, subject string, data TemplateData) error {
	var body bytes.Buffer
	if err := s.template.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	if s.config.Host == "" {
		s.log.Info("smtp disabled, email not sent",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.String("link", data.Link))
		return nil
	}

	msg := fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.FromEmail)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "MIME-version: 1.0;\r\n"
	msg += "Content-Type: text/html; charset=\"UTF-8\";\r\n"
	msg += "\r\n" + body.String() + "\r\n"

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.send(addr, auth, s.config.FromEmail, []string{to}, []byte(msg)); err != nil {
		s.log.Error("failed to send email", slog.String("to", to), slog.String("error", err.Error()))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Debug("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}
