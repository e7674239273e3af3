// Package auth issues and validates session tokens and mints the opaque
// one-time tokens used for email verification and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/revokedtokens"
	"github.com/golang-jwt/jwt/v5"
)

const (
	jtiBytes          = 16
	oneTimeTokenBytes = 32
)

// Claims carried by a session token: user_id, jti and exp.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 session tokens and checks them against the
// revocation list on every validation.
type TokenService struct {
	secret   []byte
	ttl      time.Duration
	revoked  revokedtokens.Repository
	now      func() time.Time
	newToken func() (string, error)
}

// Option adjusts a TokenService built by NewTokenService.
type Option func(*TokenService)

// WithOneTimeTokenSource replaces the candidate generator used by
// GenerateUniqueOneTimeToken. A nil gen keeps NewOneTimeToken.
func WithOneTimeTokenSource(gen func() (string, error)) Option {
	return func(s *TokenService) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

func NewTokenService(secret []byte, ttl time.Duration, revoked revokedtokens.Repository, opts ...Option) *TokenService {
	if ttl <= 0 {
		ttl = common.SessionTokenTTL
	}
	s := &TokenService{
		secret:   secret,
		ttl:      ttl,
		revoked:  revoked,
		now:      time.Now,
		newToken: NewOneTimeToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind returns a copy of s that reads and writes the revocation list
// through repo, typically one bound to the caller's transaction.
func (s *TokenService) Bind(repo revokedtokens.Repository) *TokenService {
	c := *s
	c.revoked = repo
	return &c
}

// IssueSessionToken mints a token for userID with a fresh jti.
func (s *TokenService) IssueSessionToken(userID string) (string, error) {
	jti, err := common.MakeRandHexString(jtiBytes)
	if err != nil {
		return "", fmt.Errorf("jti: %w", err)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateSessionToken verifies signature and expiry, then rejects tokens
// whose jti is on the revocation list.
func (s *TokenService) ValidateSessionToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	revoked, err := s.revoked.Exists(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	return claims, nil
}

// Revoke adds jti to the revocation list. Revoking twice is a no-op.
func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return common.ErrInvalidToken
	}
	return s.revoked.Create(ctx, jti, s.now().UTC())
}

// NewOneTimeToken returns 256 bits of randomness as a URL-safe string.
func NewOneTimeToken() (string, error) {
	return common.MakeRandURLSafeString(oneTimeTokenBytes)
}

// GenerateUniqueOneTimeToken draws candidates until exists reports one as
// unused. It gives up with common.ErrTokenGenerationExhausted after
// common.MaxTokenGenerationAttempts collisions.
func (s *TokenService) GenerateUniqueOneTimeToken(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < common.MaxTokenGenerationAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", fmt.Errorf("one-time token: %w", err)
		}

		taken, err := exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("one-time token lookup: %w", err)
		}
		if !taken {
			return token, nil
		}
	}
	return "", common.ErrTokenGenerationExhausted
}
