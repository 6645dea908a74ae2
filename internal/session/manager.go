// Package session keeps the backend session token in durable storage.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashvest/minerdash/internal/errs"
	"github.com/hashvest/minerdash/internal/storage"
	log "github.com/sirupsen/logrus"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, phone, password string) (string, error)
}

// Manager logs in against the backend and serves the stored token to other components.
type Manager struct {
	auth    Authenticator
	session *storage.Session
	now     func() time.Time
}

// NewManager constructs a session manager.
func NewManager(auth Authenticator, session *storage.Session) *Manager {
	if session == nil {
		return nil
	}
	return &Manager{auth: auth, session: session, now: time.Now}
}

// SetClock replaces time.Now for expiry checks.
func (m *Manager) SetClock(now func() time.Time) {
	if m != nil && now != nil {
		m.now = now
	}
}

// Login authenticates and stores the token, the phone number and the just-logged-in flag.
func (m *Manager) Login(ctx context.Context, phone, password string) error {
	if m == nil || m.auth == nil {
		return errors.New("session: not initialized")
	}
	token, errLogin := m.auth.Login(ctx, phone, password)
	if errLogin != nil {
		return errLogin
	}
	if errSave := m.session.SaveLogin(ctx, token, phone); errSave != nil {
		return errSave
	}
	log.Infof("session: logged in (phone=%s)", maskPhone(phone))
	return nil
}

// Token returns the stored token. It fails with errs.ErrNotLoggedIn when none is stored and
// with errs.ErrSessionExpired (clearing the session) when the token's exp claim has passed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m == nil {
		return "", errors.New("session: not initialized")
	}
	token, errToken := m.session.Token(ctx)
	if errToken != nil {
		return "", errToken
	}
	if token == "" {
		return "", errs.ErrNotLoggedIn
	}
	if exp, ok := ExpiresAt(token); ok && !m.now().Before(exp) {
		if errClear := m.session.Clear(ctx); errClear != nil {
			log.WithError(errClear).Warn("session: clear expired session failed")
		}
		return "", errs.ErrSessionExpired
	}
	return token, nil
}

// LoggedIn reports whether a usable token is stored.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	_, errToken := m.Token(ctx)
	return errToken == nil
}

// Phone returns the remembered phone number for autofill.
func (m *Manager) Phone(ctx context.Context) (string, error) {
	if m == nil {
		return "", errors.New("session: not initialized")
	}
	return m.session.Phone(ctx)
}

// Logout forgets the token. The phone number stays for autofill.
func (m *Manager) Logout(ctx context.Context) error {
	if m == nil {
		return errors.New("session: not initialized")
	}
	return m.session.Clear(ctx)
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature; the client
// does not hold the server key. Opaque tokens report false.
func ExpiresAt(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, errParse := jwt.NewParser().ParseUnverified(token, &claims); errParse != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
