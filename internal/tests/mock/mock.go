package mock

import (
	"context"
	"destored/internal/model"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// ===================== PROVIDER =====================

type MockProvider struct {
	mock.Mock
}

func NewProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Login(ctx context.Context, req model.LoginRequest) (*model.LoginData, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoginData), args.Error(1)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *MockProvider) Logout(ctx context.Context) (*model.Message, error) {
	args := m.Called(ctx)
	return message(args)
}

func (m *MockProvider) Register(ctx context.Context, req model.RegisterRequest) (*model.Message, error) {
	args := m.Called(ctx, req)
	return message(args)
}

func (m *MockProvider) VerifyEmail(ctx context.Context, token string) (*model.Message, error) {
	args := m.Called(ctx, token)
	return message(args)
}

func (m *MockProvider) ResendVerification(ctx context.Context, email string) (*model.Message, error) {
	args := m.Called(ctx, email)
	return message(args)
}

func (m *MockProvider) ForgotPassword(ctx context.Context, email string) (*model.Message, error) {
	args := m.Called(ctx, email)
	return message(args)
}

func (m *MockProvider) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (*model.Message, error) {
	args := m.Called(ctx, req)
	return message(args)
}

func (m *MockProvider) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) (*model.Message, error) {
	args := m.Called(ctx, req)
	return message(args)
}

func message(args mock.Arguments) (*model.Message, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// ===================== REDIS CLIENT =====================

type MockRedisClient struct {
	mock.Mock
}

func NewRedisClient() *MockRedisClient {
	return &MockRedisClient{}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

// ===================== EMAIL SENDER =====================

type MockEmailSender struct {
	mock.Mock
	sentEmails []SentEmail
	mu         sync.Mutex
}

type SentEmail struct {
	Kind    string
	ToEmail string
	Name    string
	Token   string
	Time    time.Time
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{
		sentEmails: make([]SentEmail, 0),
	}
}

func (m *MockEmailSender) SendVerification(toEmail, name, token string) error {
	m.record("verification", toEmail, name, token)
	args := m.Called(toEmail, name, token)
	return args.Error(0)
}

func (m *MockEmailSender) SendPasswordReset(toEmail, name, token string) error {
	m.record("reset", toEmail, name, token)
	args := m.Called(toEmail, name, token)
	return args.Error(0)
}

func (m *MockEmailSender) record(kind, toEmail, name, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentEmails = append(m.sentEmails, SentEmail{
		Kind:    kind,
		ToEmail: toEmail,
		Name:    name,
		Token:   token,
		Time:    time.Now(),
	})
}

func (m *MockEmailSender) GetSentEmails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	emails := make([]SentEmail, len(m.sentEmails))
	copy(emails, m.sentEmails)
	return emails
}

// LastToken returns the token of the most recent email of the given kind.
func (m *MockEmailSender) LastToken(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sentEmails) - 1; i >= 0; i-- {
		if m.sentEmails[i].Kind == kind {
			return m.sentEmails[i].Token
		}
	}
	return ""
}
