package mockapi

import (
	"destored/internal/model"
	"destored/internal/sender"
	"destored/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"log/slog"
	"net/http"
)

type Options struct {
	CORSOrigins  []string
	RateLimitRPM int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Server is an in-memory implementation of the Destored auth REST API,
// used for local development and end-to-end tests of the client.
type Server struct {
	accounts *accounts
	tokens   token.Generate
	mailer   sender.EmailSender
	validate *validator.Validate
	log      *slog.Logger
	handler  http.Handler
}

func NewServer(tokens token.Generate, mailer sender.EmailSender, opts Options, log *slog.Logger) *Server {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	s := &Server{
		accounts: newAccounts(cost, token.NowTimeFunc),
		tokens:   tokens,
		mailer:   mailer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
	s.handler = s.routes(opts)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// AddUser creates an account directly, bypassing email delivery.
func (s *Server) AddUser(req model.RegisterRequest, verified bool) (model.User, error) {
	user, _, err := s.accounts.create(req, verified)
	return user, err
}

func (s *Server) routes(opts Options) http.Handler {
	limiter := newRateLimiter(opts.RateLimitRPM)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(opts.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/auth/login", s.login)
			r.Post("/refresh", s.refresh)
			r.Post("/register", s.register)
			r.Post("/forgot-password", s.forgotPassword)
			r.Post("/resend-verification", s.resendVerification)
		})

		r.Post("/verify-email", s.verifyEmail)
		r.Post("/reset-password", s.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/logout", s.logout)
			r.Post("/change-password", s.changePassword)
		})
	})

	return r
}
