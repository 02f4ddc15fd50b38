package mockapi

import (
	"destored/internal/model"
	"errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email address is not verified")
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrUnknownAccount     = errors.New("account not found")
)

const resetTokenTTL = time.Hour

type account struct {
	user     model.User
	hash     []byte
	phone    string
	verified bool
}

type expiring struct {
	userID  string
	expires time.Time
}

// accounts is the in-memory user directory of the development API.
type accounts struct {
	mu sync.Mutex

	byID    map[string]*account
	byEmail map[string]*account

	verifyTokens  map[string]string
	resetTokens   map[string]expiring
	refreshTokens map[string]string
	revokedAccess map[string]time.Time

	cost int
	now  func() time.Time
}

func newAccounts(cost int, now func() time.Time) *accounts {
	return &accounts{
		byID:          make(map[string]*account),
		byEmail:       make(map[string]*account),
		verifyTokens:  make(map[string]string),
		resetTokens:   make(map[string]expiring),
		refreshTokens: make(map[string]string),
		revokedAccess: make(map[string]time.Time),
		cost:          cost,
		now:           now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// create stores a new account and returns its verification token.
func (a *accounts) create(req model.RegisterRequest, verified bool) (model.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return model.User{}, "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	email := normalizeEmail(req.Email)
	if _, ok := a.byEmail[email]; ok {
		return model.User{}, "", ErrEmailTaken
	}

	acc := &account{
		user: model.User{
			ID:        uuid.NewString(),
			Email:     email,
			Username:  strings.SplitN(email, "@", 2)[0],
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      req.Role,
		},
		hash:     hash,
		phone:    req.Phone,
		verified: verified,
	}
	a.byID[acc.user.ID] = acc
	a.byEmail[email] = acc

	var verifyToken string
	if !verified {
		verifyToken = uuid.NewString()
		a.verifyTokens[verifyToken] = acc.user.ID
	}
	return acc.user, verifyToken, nil
}

func (a *accounts) authenticate(email, password string) (model.User, error) {
	a.mu.Lock()
	acc, ok := a.byEmail[normalizeEmail(email)]
	a.mu.Unlock()
	if !ok {
		return model.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	if !acc.verified {
		return model.User{}, ErrNotVerified
	}
	return acc.user, nil
}

func (a *accounts) verify(token string) (model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.verifyTokens[token]
	if !ok {
		return model.User{}, ErrInvalidToken
	}
	delete(a.verifyTokens, token)

	acc := a.byID[id]
	acc.verified = true
	return acc.user, nil
}

// reissueVerification returns a fresh token for an unverified account, or "" otherwise.
func (a *accounts) reissueVerification(email string) (model.User, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.byEmail[normalizeEmail(email)]
	if !ok || acc.verified {
		return model.User{}, ""
	}

	for tok, id := range a.verifyTokens {
		if id == acc.user.ID {
			delete(a.verifyTokens, tok)
		}
	}
	tok := uuid.NewString()
	a.verifyTokens[tok] = acc.user.ID
	return acc.user, tok
}

func (a *accounts) issueReset(email string) (model.User, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.byEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, ""
	}

	tok := uuid.NewString()
	a.resetTokens[tok] = expiring{userID: acc.user.ID, expires: a.now().Add(resetTokenTTL)}
	return acc.user, tok
}

func (a *accounts) resetPassword(token, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rt, ok := a.resetTokens[token]
	delete(a.resetTokens, token)
	if !ok || a.now().After(rt.expires) {
		return ErrInvalidToken
	}

	a.byID[rt.userID].hash = hash
	a.revokeRefreshLocked(rt.userID)
	return nil
}

func (a *accounts) changePassword(userID, current, next string) error {
	a.mu.Lock()
	acc, ok := a.byID[userID]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownAccount
	}

	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.cost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	acc.hash = hash
	a.mu.Unlock()
	return nil
}

func (a *accounts) user(id string) (model.User, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.byID[id]
	if !ok {
		return model.User{}, false
	}
	return acc.user, true
}

func (a *accounts) saveRefresh(token, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshTokens[token] = userID
}

// rotateRefresh consumes a refresh token. It can be used once.
func (a *accounts) rotateRefresh(token string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.refreshTokens[token]
	if ok {
		delete(a.refreshTokens, token)
	}
	return id, ok
}

func (a *accounts) logout(userID, accessJTI string, accessExp time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if accessJTI != "" {
		a.revokedAccess[accessJTI] = accessExp
	}
	a.revokeRefreshLocked(userID)

	now := a.now()
	for jti, exp := range a.revokedAccess {
		if now.After(exp) {
			delete(a.revokedAccess, jti)
		}
	}
}

func (a *accounts) revoked(jti string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revokedAccess[jti]
	return ok
}

func (a *accounts) revokeRefreshLocked(userID string) {
	for tok, id := range a.refreshTokens {
		if id == userID {
			delete(a.refreshTokens, tok)
		}
	}
}
