package storage

import (
	"context"
	"errors"
	"strings"
)

// Session is the typed view over the session.* keys.
type Session struct {
	store Store
}

// NewSession wraps store.
func NewSession(store Store) *Session {
	if store == nil {
		return nil
	}
	return &Session{store: store}
}

// SaveLogin stores the token and phone and raises the one-shot just-logged-in flag.
func (s *Session) SaveLogin(ctx context.Context, token, phone string) error {
	if s == nil {
		return errors.New("storage: session not initialized")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("storage: session token is required")
	}
	if errSet := s.store.Set(ctx, KeySessionToken, token); errSet != nil {
		return errSet
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		if errSet := s.store.Set(ctx, KeySessionPhone, phone); errSet != nil {
			return errSet
		}
	}
	return s.store.Set(ctx, KeyJustLoggedIn, true)
}

// Token returns the stored token, or "" when none is stored.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.getString(ctx, KeySessionToken)
}

// Phone returns the remembered phone number, or "".
func (s *Session) Phone(ctx context.Context) (string, error) {
	return s.getString(ctx, KeySessionPhone)
}

// ConsumeJustLoggedIn reports whether the flag was set and clears it.
func (s *Session) ConsumeJustLoggedIn(ctx context.Context) (bool, error) {
	if s == nil {
		return false, errors.New("storage: session not initialized")
	}
	var flag bool
	found, errGet := s.store.Get(ctx, KeyJustLoggedIn, &flag)
	if errGet != nil && !errors.Is(errGet, ErrCorrupt) {
		return false, errGet
	}
	if !found {
		return false, nil
	}
	if errDel := s.store.Delete(ctx, KeyJustLoggedIn); errDel != nil {
		return false, errDel
	}
	return flag && errGet == nil, nil
}

// Clear removes the token and the flag. The phone number is kept for autofill.
func (s *Session) Clear(ctx context.Context) error {
	if s == nil {
		return errors.New("storage: session not initialized")
	}
	if errDel := s.store.Delete(ctx, KeySessionToken); errDel != nil {
		return errDel
	}
	return s.store.Delete(ctx, KeyJustLoggedIn)
}

func (s *Session) getString(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: session not initialized")
	}
	var value string
	found, errGet := s.store.Get(ctx, key, &value)
	if errGet != nil || !found {
		return "", errGet
	}
	return value, nil
}
