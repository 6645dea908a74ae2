// Package storage is the durable key/value store the client keeps between runs.
//
// Schema (all values JSON encoded):
//
//	session.token            string   auth token issued by the backend
//	session.phone            string   last phone number used to log in (autofill)
//	session.just_logged_in   bool     one-shot flag, consumed to reset the promo countdown
//	countdown.<name>         object   {"remaining_seconds": int, "checkpoint_at": RFC3339}
//
// Writers do not lock; concurrent writers to the same key are last-writer-wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Storage keys.
const (
	KeySessionToken    = "session.token"
	KeySessionPhone    = "session.phone"
	KeyJustLoggedIn    = "session.just_logged_in"
	keyCountdownPrefix = "countdown."
)

var (
	// ErrCorrupt is returned by Get when a stored value cannot be decoded into dst.
	ErrCorrupt = errors.New("storage: corrupt value")
	// ErrEmptyKey rejects blank keys.
	ErrEmptyKey = errors.New("storage: key is required")
)

// Store is a typed key/value store.
type Store interface {
	// Get decodes the value stored under key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set encodes value and stores it under key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// CountdownKey returns the storage key for a named persisted countdown.
func CountdownKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	return keyCountdownPrefix + name
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

func encode(key string, value any) ([]byte, error) {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return nil, fmt.Errorf("storage: encode %s: %w", key, errMarshal)
	}
	return payload, nil
}

func decode(key string, payload []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if errUnmarshal := json.Unmarshal(payload, dst); errUnmarshal != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, errUnmarshal)
	}
	return nil
}
