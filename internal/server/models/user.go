package models

import "time"

// OneTimeToken is an opaque single-use token together with its expiry.
// A zero value means no token is outstanding.
type OneTimeToken struct {
	Token  string
	Expiry *time.Time
}

// Issued reports whether a token is currently stored.
func (t OneTimeToken) Issued() bool {
	return t.Token != ""
}

// ExpiredAt reports whether the token is unusable at now. A token without
// an expiry is treated as expired.
func (t OneTimeToken) ExpiredAt(now time.Time) bool {
	return t.Expiry == nil || !now.Before(*t.Expiry)
}

// User is a registered account. Email is stored as given and looked up
// exactly, except in the password reset flow.
type User struct {
	ID           string
	FirstName    string
	SecondName   string
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsActive     bool
	Verification OneTimeToken
	Reset        OneTimeToken
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role names used in redirect hints and logs.
func (u *User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
