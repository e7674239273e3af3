package models

import "time"

// RevokedToken is a denylist entry for a session token id. Entries are
// never updated or deleted.
type RevokedToken struct {
	JTI       string
	RevokedAt time.Time
}
