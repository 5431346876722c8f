// Package finerrors defines the error taxonomy shared across the
// connect, revoke, and aggregation flows.
package finerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound indicates an unknown provider id.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderInUse indicates a provider still referenced by stored tokens.
	ErrProviderInUse = errors.New("provider has connected users")

	// ErrNotConnected indicates no token exists for a (user, provider) pair.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidState indicates a callback state that was never issued,
	// already consumed, or expired.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrRevocationFailed indicates the provider did not confirm revocation.
	// The stored token is retained; its provider-side validity is unknown.
	ErrRevocationFailed = errors.New("revocation failed")

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ExchangeError reports a failed authorization-code exchange: a transport
// error, a non-2xx from the token endpoint, or a response missing the
// expected token fields.
type ExchangeError struct {
	Status int
	Body   string
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// UpstreamError reports a non-2xx response or malformed envelope from a
// provider's accounts/balances/products endpoints.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Wrapf wraps an error with context using fmt.Errorf.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
