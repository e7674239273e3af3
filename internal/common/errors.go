// Package common defines shared constants and sentinel errors used across
// the Deliveroo auth server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrorUniqueViolation = errors.New("unique constraint violation")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Registration and account state.
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrUserExists         = errors.New("username or email already exists")
	ErrAccountInactive    = errors.New("account is not verified")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
	ErrMissingResetFields = errors.New("token, password and confirm password are required")
	ErrMissingToken       = errors.New("missing token")

	// Session token errors (invalid, malformed or revoked token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	// One-time token lifecycle errors.
	ErrInvalidOrExpiredToken    = errors.New("invalid or expired token")
	ErrTokenGenerationExhausted = errors.New("could not generate a unique token")

	// External collaborators.
	ErrServiceUnavailable = errors.New("email service unavailable")
)
