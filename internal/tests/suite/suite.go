package suite

import (
	"destored/internal/bootstrap"
	"destored/internal/config"
	"destored/internal/credentials"
	"destored/internal/httpclient"
	"destored/internal/mockapi"
	"destored/internal/model"
	"destored/internal/provider/api"
	"destored/internal/refresh"
	"destored/internal/scheduler"
	auth "destored/internal/servises/auth"
	"destored/internal/session"
	"destored/internal/storage"
	mock "destored/internal/tests/mock"
	"destored/internal/token"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmock "github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// Suite wires the whole client against an in-process API.
type Suite struct {
	*testing.T

	// API side
	Server     *httptest.Server
	API        *mockapi.Server
	MockSender *mock.MockEmailSender

	// client side
	Backend      *storage.Memory
	Store        *credentials.Store
	Holder       *session.Holder
	Bootstrapper *bootstrap.Bootstrapper
	Scheduler    *scheduler.Scheduler
	Auth         *auth.Auth
}

type Options struct {
	// AccessTTL of tokens minted by the API. Defaults to one hour.
	AccessTTL time.Duration
	// Threshold below which the scheduler refreshes. Defaults to five minutes.
	Threshold time.Duration
}

func New(t *testing.T) *Suite {
	return NewWithOptions(t, Options{})
}

func NewWithOptions(t *testing.T, opts Options) *Suite {
	t.Helper()

	if opts.AccessTTL == 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.Threshold == 0 {
		opts.Threshold = 5 * time.Minute
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 1. the API
	mockSender := mock.NewMockEmailSender()
	mockSender.On("SendVerification", tmock.Anything, tmock.Anything, tmock.Anything).Return(nil).Maybe()
	mockSender.On("SendPasswordReset", tmock.Anything, tmock.Anything, tmock.Anything).Return(nil).Maybe()

	manager := token.NewJWTManager("suite-access", "suite-refresh", opts.AccessTTL, 24*time.Hour)
	apiServer := mockapi.NewServer(manager, mockSender, mockapi.Options{
		RateLimitRPM: 1000,
		BcryptCost:   bcrypt.MinCost,
	}, log)
	srv := httptest.NewServer(apiServer)

	// 2. the client
	backend := storage.NewMemory()
	store := credentials.New(backend, config.UndecodableRefresh, log)
	client := httpclient.New(srv.URL+"/api/v1", 5*time.Second, store, log)
	provider := api.NewProvider(client, log)

	holder := session.NewHolder()
	refresher := refresh.New(provider, log)
	sched := scheduler.New(holder, store, refresher, config.RefreshConfig{
		Interval:    time.Hour,
		Threshold:   opts.Threshold,
		Undecodable: config.UndecodableRefresh,
	}, log)

	s := &Suite{
		T:            t,
		Server:       srv,
		API:          apiServer,
		MockSender:   mockSender,
		Backend:      backend,
		Store:        store,
		Holder:       holder,
		Bootstrapper: bootstrap.New(store, refresher, holder, log),
		Scheduler:    sched,
		Auth:         auth.NewAuth(provider, store, holder, sched, log),
	}

	t.Cleanup(s.Cleanup)

	return s
}

func (s *Suite) Cleanup() {
	s.Scheduler.Deactivate()
	s.Server.Close()
}

// Account registers a verified user directly on the API.
func (s *Suite) Account(email, password string) model.User {
	s.Helper()

	user, err := s.API.AddUser(model.RegisterRequest{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		FirstName:       "Jane",
		LastName:        "Doe",
		Role:            model.RoleClient,
		AcceptTerms:     true,
	}, true)
	require.NoError(s.T, err)
	return user
}
