package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, first_name, second_name, username, email, password_hash, is_admin, is_active,
		verification_token, verification_token_expiry, reset_token, reset_token_expiry, created_at, updated_at`

// SQLRepository implements Repository with queries that run on both
// PostgreSQL and SQLite (placeholders are rebound by dbx for the latter).
type SQLRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u                    models.User
		verToken, resetToken sql.NullString
		verExpiry, resetExp  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.SecondName, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsAdmin, &u.IsActive, &verToken, &verExpiry, &resetToken, &resetExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Verification = oneTimeToken(verToken, verExpiry)
	u.Reset = oneTimeToken(resetToken, resetExp)
	return &u, nil
}

func oneTimeToken(token sql.NullString, expiry sql.NullTime) models.OneTimeToken {
	t := models.OneTimeToken{Token: token.String}
	if expiry.Valid {
		e := expiry.Time.UTC()
		t.Expiry = &e
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Create inserts user. An empty ID is filled with a new UUID and the
// timestamps are set to now.
func (r *SQLRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now

	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.SecondName, user.Username, user.Email, user.PasswordHash,
		user.IsAdmin, user.IsActive,
		nullString(user.Verification.Token), nullTime(user.Verification.Expiry),
		nullString(user.Reset.Token), nullTime(user.Reset.Expiry),
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("db error: %w: %w", common.ErrorUniqueViolation, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByEmail matches the stored address exactly.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

// GetByEmailFold matches the stored address ignoring case. Addresses that
// differ only in case can coexist, so the oldest account wins.
func (r *SQLRepository) GetByEmailFold(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `lower(email) = lower($1) ORDER BY created_at, id LIMIT 1`, email)
}

func (r *SQLRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, `verification_token = $1`, token)
}

func (r *SQLRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, `reset_token = $1`, token)
}

func (r *SQLRepository) exists(ctx context.Context, column, token string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE ` + column + ` = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) VerificationTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "verification_token", token)
}

func (r *SQLRepository) ResetTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "reset_token", token)
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("db error: %w: %w", common.ErrorUniqueViolation, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SetVerificationToken overwrites the outstanding verification token.
func (r *SQLRepository) SetVerificationToken(ctx context.Context, id string, token models.OneTimeToken) error {
	query :=
		`UPDATE users SET verification_token = $2, verification_token_expiry = $3, updated_at = $4
		 WHERE id = $1`
	return r.execOne(ctx, query, id, nullString(token.Token), nullTime(token.Expiry), r.now())
}

// SetResetToken overwrites the outstanding reset token.
func (r *SQLRepository) SetResetToken(ctx context.Context, id string, token models.OneTimeToken) error {
	query :=
		`UPDATE users SET reset_token = $2, reset_token_expiry = $3, updated_at = $4
		 WHERE id = $1`
	return r.execOne(ctx, query, id, nullString(token.Token), nullTime(token.Expiry), r.now())
}

// Activate marks the user active and consumes the verification token. It
// fails with common.ErrorNotFound unless the token is still the stored one,
// so only one of two concurrent consumers wins.
func (r *SQLRepository) Activate(ctx context.Context, id, verificationToken string) error {
	query :=
		`UPDATE users SET is_active = $3, verification_token = NULL, verification_token_expiry = NULL, updated_at = $4
		 WHERE id = $1 AND verification_token = $2`
	return r.execOne(ctx, query, id, verificationToken, true, r.now())
}

// ResetPassword stores a new hash and consumes the reset token under the
// same guard as Activate.
func (r *SQLRepository) ResetPassword(ctx context.Context, id, resetToken, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $3, reset_token = NULL, reset_token_expiry = NULL, updated_at = $4
		 WHERE id = $1 AND reset_token = $2`
	return r.execOne(ctx, query, id, resetToken, passwordHash, r.now())
}

func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
