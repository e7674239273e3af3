package common

import "time"

// AuthorizationHeaderName carries the session token as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// Default lifetimes of the tokens issued by the server.
const (
	SessionTokenTTL      = 24 * time.Hour
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = time.Hour
)

// MaxTokenGenerationAttempts bounds the collision loop for one-time tokens.
const MaxTokenGenerationAttempts = 3
