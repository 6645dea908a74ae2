// Package errs contains sentinel errors shared across the client layers.
package errs

import "errors"

var (
	// ErrUnauthorized indicates the backend rejected the session (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotLoggedIn indicates no session token is stored.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrSessionExpired indicates the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
