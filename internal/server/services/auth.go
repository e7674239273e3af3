// Package services contains server-side business logic. This file implements
// AuthService, which drives registration, email verification, login, logout
// and password reset against the credential store, the token service and the
// mail dispatcher. Every operation runs in a single transaction.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/cryptox"
	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server/auth"
	"github.com/dmitrijs2005/deliveroo/internal/server/config"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/repomanager"
)

// Redirect hints returned on login.
const (
	RedirectAdmin = "/admin-dashboard"
	RedirectUser  = "/dashboard"
)

// Mailer sends the account emails. false means the message was not handed
// to the transport and the surrounding transaction must roll back.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) bool
	SendPasswordResetEmail(ctx context.Context, to, token string) bool
}

// RegisterInput is an already validated registration request.
type RegisterInput struct {
	FirstName       string
	SecondName      string
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// CreateAdminInput describes an administrator created out of band.
type CreateAdminInput struct {
	FirstName  string
	SecondName string
	Username   string
	Email      string
	Password   string
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token    string
	User     *models.User
	Redirect string
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	mailer      Mailer
	logger      logging.Logger

	verificationTTL   time.Duration
	resetTTL          time.Duration
	enforceVerifyTTL  bool
	hashCost          int
	dummyPasswordHash string
	now               func() time.Time
}

// NewAuthService wires AuthService from its collaborators and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService, mailer Mailer, cfg *config.Config, logger logging.Logger) *AuthService {
	s := &AuthService{
		db:               db,
		repomanager:      m,
		tokens:           tokens,
		mailer:           mailer,
		logger:           logger,
		verificationTTL:  cfg.VerificationTokenTTL,
		resetTTL:         cfg.ResetTokenTTL,
		enforceVerifyTTL: cfg.EnforceVerificationExpiry,
		hashCost:         cfg.PasswordHashCost,
		now:              func() time.Time { return time.Now().UTC() },
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = common.VerificationTokenTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = common.ResetTokenTTL
	}
	// compared against on unknown emails so both login failures cost a hash
	dummy, _ := common.MakeRandHexString(16)
	s.dummyPasswordHash, _ = cryptox.HashPassword(dummy, s.hashCost)
	return s
}

// Register creates an inactive user and sends the verification email. If
// the email cannot be sent nothing is persisted.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Password != in.ConfirmPassword {
		return nil, common.ErrPasswordMismatch
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		if errors.Is(err, common.ErrPasswordTooLong) {
			return nil, err
		}
		s.logger.Error(ctx, "registration: hash password", logging.Err(err))
		return nil, common.ErrorInternal
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		if _, err := users.GetByEmail(ctx, in.Email); err == nil {
			return common.ErrEmailTaken
		} else if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("lookup email: %w", err)
		}

		token, err := s.tokens.GenerateUniqueOneTimeToken(ctx, users.VerificationTokenExists)
		if err != nil {
			return err
		}
		expiry := s.now().Add(s.verificationTTL)

		u := &models.User{
			FirstName:    in.FirstName,
			SecondName:   in.SecondName,
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			Verification: models.OneTimeToken{Token: token, Expiry: &expiry},
		}
		if err := users.Create(ctx, u); err != nil {
			if errors.Is(err, common.ErrorUniqueViolation) {
				return common.ErrUserExists
			}
			return fmt.Errorf("create user: %w", err)
		}

		if !s.mailer.SendVerificationEmail(ctx, u.Email, token) {
			return common.ErrServiceUnavailable
		}

		user = u
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "user registered", "user_id", user.ID)
		return user, nil
	case errors.Is(err, common.ErrEmailTaken), errors.Is(err, common.ErrUserExists):
		s.logger.Info(ctx, "registration rejected: duplicate account")
		return nil, err
	case errors.Is(err, common.ErrServiceUnavailable):
		s.logger.Error(ctx, "registration rolled back: verification email not sent")
		return nil, err
	default:
		s.logger.Error(ctx, "registration failed", logging.Err(err))
		return nil, common.ErrorInternal
	}
}

// VerifyEmail activates the user holding token and consumes it.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrMissingToken
	}

	var userID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		u, err := users.GetByVerificationToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}

		if s.enforceVerifyTTL && u.Verification.ExpiredAt(s.now()) {
			return common.ErrInvalidToken
		}

		if err := users.Activate(ctx, u.ID, token); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		userID = u.ID
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "email verified", "user_id", userID)
		return nil
	case errors.Is(err, common.ErrInvalidToken):
		return err
	default:
		s.logger.Error(ctx, "email verification failed", logging.Err(err))
		return common.ErrorInternal
	}
}

// Login checks credentials and mints a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result *LoginResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				cryptox.CheckPassword(s.dummyPasswordHash, password)
				return common.ErrorUnauthorized
			}
			return err
		}

		if !cryptox.CheckPassword(u.PasswordHash, password) {
			return common.ErrorUnauthorized
		}
		if !u.IsActive {
			return common.ErrAccountInactive
		}

		token, err := s.tokens.IssueSessionToken(u.ID)
		if err != nil {
			return fmt.Errorf("issue session token: %w", err)
		}

		redirect := RedirectUser
		if u.IsAdmin {
			redirect = RedirectAdmin
		}
		result = &LoginResult{Token: token, User: u, Redirect: redirect}
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "login succeeded", "user_id", result.User.ID, "role", result.User.Role())
		return result, nil
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrAccountInactive):
		return nil, err
	default:
		s.logger.Error(ctx, "login failed", logging.Err(err))
		return nil, common.ErrorInternal
	}
}

// Logout revokes the jti of a valid session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.tokens.Bind(s.repomanager.RevokedTokens(tx))

		claims, err := tokens.ValidateSessionToken(ctx, token)
		if err != nil {
			return sessionError(err)
		}
		return tokens.Revoke(ctx, claims.ID)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorUnauthorized):
		return err
	default:
		s.logger.Error(ctx, "logout failed", logging.Err(err))
		return common.ErrorInternal
	}
}

// Authenticate resolves a session token to its user for protected routes.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	var (
		user   *models.User
		claims *auth.Claims
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := s.tokens.Bind(s.repomanager.RevokedTokens(tx)).ValidateSessionToken(ctx, token)
		if err != nil {
			return sessionError(err)
		}

		u, err := s.repomanager.Users(tx).GetByID(ctx, c.UserID)
		if err != nil {
			return err
		}
		user, claims = u, c
		return nil
	})

	switch {
	case err == nil:
		return user, claims, nil
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorNotFound):
		return nil, nil, err
	default:
		s.logger.Error(ctx, "authenticate failed", logging.Err(err))
		return nil, nil, common.ErrorInternal
	}
}

// RequestPasswordReset issues a reset token and mails it. The caller always
// answers the same way; the outcome is only visible in logs.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))

	var userID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		u, err := users.GetByEmailFold(ctx, email)
		if err != nil {
			return err
		}
		userID = u.ID

		token, err := s.tokens.GenerateUniqueOneTimeToken(ctx, users.ResetTokenExists)
		if err != nil {
			return err
		}
		expiry := s.now().Add(s.resetTTL)

		if err := users.SetResetToken(ctx, u.ID, models.OneTimeToken{Token: token, Expiry: &expiry}); err != nil {
			return err
		}

		if !s.mailer.SendPasswordResetEmail(ctx, u.Email, token) {
			return common.ErrServiceUnavailable
		}
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "password reset requested", "user_id", userID)
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Info(ctx, "password reset requested for unknown email")
	case errors.Is(err, common.ErrTokenGenerationExhausted):
		s.logger.Error(ctx, "password reset: token generation exhausted", "user_id", userID)
	case errors.Is(err, common.ErrServiceUnavailable):
		s.logger.Error(ctx, "password reset rolled back: email not sent", "user_id", userID)
	default:
		s.logger.Error(ctx, "password reset request failed", logging.Err(err))
	}
}

// ConfirmPasswordReset sets a new password for the holder of a live reset
// token and consumes the token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) error {
	if token == "" || password == "" || confirm == "" {
		return common.ErrMissingResetFields
	}

	var userID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		u, err := users.GetByResetToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return err
		}
		if u.Reset.ExpiredAt(s.now()) {
			return common.ErrInvalidOrExpiredToken
		}
		if password != confirm {
			return common.ErrPasswordMismatch
		}

		hash, err := s.hashPassword(password)
		if err != nil {
			return err
		}

		if err := users.ResetPassword(ctx, u.ID, token, hash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return err
		}
		userID = u.ID
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "password updated", "user_id", userID)
		return nil
	case errors.Is(err, common.ErrInvalidOrExpiredToken),
		errors.Is(err, common.ErrPasswordMismatch),
		errors.Is(err, common.ErrPasswordTooLong):
		return err
	default:
		s.logger.Error(ctx, "password reset confirm failed", logging.Err(err))
		return common.ErrorInternal
	}
}

// ResendVerification reissues the verification token of an inactive user.
// Only an already active account is reported back; every other outcome
// returns nil.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	var userID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		u, err := users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		userID = u.ID
		if u.IsActive {
			return common.ErrAlreadyVerified
		}

		token, err := s.tokens.GenerateUniqueOneTimeToken(ctx, users.VerificationTokenExists)
		if err != nil {
			return err
		}
		expiry := s.now().Add(s.verificationTTL)

		if err := users.SetVerificationToken(ctx, u.ID, models.OneTimeToken{Token: token, Expiry: &expiry}); err != nil {
			return err
		}

		if !s.mailer.SendVerificationEmail(ctx, u.Email, token) {
			return common.ErrServiceUnavailable
		}
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info(ctx, "verification email resent", "user_id", userID)
		return nil
	case errors.Is(err, common.ErrAlreadyVerified):
		return err
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Info(ctx, "verification resend for unknown email")
	case errors.Is(err, common.ErrServiceUnavailable):
		s.logger.Error(ctx, "verification resend rolled back: email not sent", "user_id", userID)
	default:
		s.logger.Error(ctx, "verification resend failed", logging.Err(err))
	}
	return nil
}

// CreateAdmin inserts an active administrator without any one-time token.
func (s *AuthService) CreateAdmin(ctx context.Context, in CreateAdminInput) (*models.User, error) {
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		FirstName:    in.FirstName,
		SecondName:   in.SecondName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Create(ctx, u)
	})
	if err != nil {
		if errors.Is(err, common.ErrorUniqueViolation) {
			return nil, common.ErrUserExists
		}
		s.logger.Error(ctx, "create admin failed", logging.Err(err))
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "admin created", "user_id", u.ID)
	return u, nil
}

// hashPassword reports bcrypt's input limit as common.ErrPasswordTooLong.
func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := cryptox.HashPassword(password, s.hashCost)
	if cryptox.IsTooLong(err) {
		return "", common.ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// sessionError folds token validation failures into ErrorUnauthorized and
// passes store errors through.
func sessionError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenRevoked):
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	default:
		return err
	}
}
