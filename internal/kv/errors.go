package kv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrKeyNotFound is returned when the store holds no value for a key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDegradedAuth signals that authentication failed and the client is
	// serving reads and writes from the local cache.
	ErrDegradedAuth = errors.New("authentication failed, running in local mode")

	// ErrNetworkUnavailable is matched by *NetworkError once retries are exhausted.
	ErrNetworkUnavailable = errors.New("store unreachable")
)

// StatusError is a non-2xx response from the store.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("store %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// NetworkError reports a request that kept failing transiently.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("store unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetworkUnavailable) match.
func (e *NetworkError) Is(target error) bool { return target == ErrNetworkUnavailable }

// AuthError wraps a 401/403 from the store or the login endpoint.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%v: %v", ErrDegradedAuth, e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDegradedAuth) match.
func (e *AuthError) Is(target error) bool { return target == ErrDegradedAuth }

func isAuthStatus(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// isTransient returns true for errors worth retrying: transport failures,
// 429 and 5xx. Other status codes, auth failures, exhausted retries of a
// nested call and cancellation are permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDegradedAuth) || errors.Is(err, ErrNetworkUnavailable) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}
