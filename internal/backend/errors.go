package backend

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashvest/minerdash/internal/errs"
)

const maxErrorBodyBytes = 512

var (
	// ErrNoToken is returned by authenticated calls when no session token is available.
	ErrNoToken = errors.New("backend: no session token")
	// ErrEmptyToken is returned when a login response carries no token.
	ErrEmptyToken = errors.New("backend: login response has no token")
)

// RequestError reports a non-2xx backend response.
type RequestError struct {
	Method     string
	Path       string
	statusCode int
	body       string
}

// NewRequestError builds a RequestError, truncating payload for logging.
func NewRequestError(method, path string, status int, payload []byte) *RequestError {
	return &RequestError{Method: method, Path: path, statusCode: status, body: summarizePayload(payload)}
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.body == "" {
		return fmt.Sprintf("backend: %s %s status=%d", e.Method, e.Path, e.statusCode)
	}
	return fmt.Sprintf("backend: %s %s status=%d body=%s", e.Method, e.Path, e.statusCode, e.body)
}

// Unwrap maps 401/403 to errs.ErrUnauthorized and 404 to errs.ErrNotFound.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	default:
		return nil
	}
}

// StatusCode returns the HTTP status of the failed response.
func (e *RequestError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.statusCode
}

// Body returns the (truncated) response body.
func (e *RequestError) Body() string {
	if e == nil {
		return ""
	}
	return e.body
}

// StatusCodeOf extracts the status of a wrapped RequestError, or 0.
func StatusCodeOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode()
	}
	return 0
}

func summarizePayload(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return ""
	}
	if len(trimmed) > maxErrorBodyBytes {
		return string(trimmed[:maxErrorBodyBytes]) + "...(truncated)"
	}
	return string(trimmed)
}
