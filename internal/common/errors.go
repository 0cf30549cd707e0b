// Package common contains shared constants and sentinel errors used across
// the auth core. Callers should use errors.Is to match these values.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// ErrConfiguration covers fatal misconfiguration: an empty or
	// unreadable pepper store, a missing limiter backend address.
	// It is never downgraded to "no protection".
	ErrConfiguration = errors.New("configuration error")

	// service specific errors
	ErrorInternal = errors.New("internal error")

	// ErrInvalidCredentials is returned for any credential mismatch,
	// including unknown accounts. The message is deliberately generic.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrRateLimited signals that the source address exhausted its
	// login attempt quota and is currently blocked.
	ErrRateLimited = errors.New("too many attempts")

	// ErrBackendUnavailable signals that a required backend (counter
	// store, credential store) could not be reached in time.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
