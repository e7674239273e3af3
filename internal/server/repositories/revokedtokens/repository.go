// Package revokedtokens declares the server-side repository contract for
// the session token denylist.
package revokedtokens

import (
	"context"
	"time"
)

// Repository defines operations on revoked session token ids.
type Repository interface {
	// Create records jti as revoked at the given time. Revoking an already
	// revoked jti is not an error and leaves the original entry untouched.
	Create(ctx context.Context, jti string, revokedAt time.Time) error

	// Exists reports whether jti has been revoked. Implementations must read
	// the store on every call.
	Exists(ctx context.Context, jti string) (bool, error)
}
