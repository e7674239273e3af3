// Package cryptox wraps the password hashing primitives used by the server.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used outside of tests.
const DefaultCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password. A cost outside bcrypt's
// valid range falls back to DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches the stored hash.
// Malformed hashes never match.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsTooLong reports whether password exceeds bcrypt's 72 byte input limit.
func IsTooLong(err error) bool {
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
