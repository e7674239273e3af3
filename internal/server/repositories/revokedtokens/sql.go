package revokedtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/dbx"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, jti string, revokedAt time.Time) error {
	query :=
		`INSERT INTO revoked_tokens (jti, revoked_at)
		 VALUES ($1, $2)
		 ON CONFLICT (jti) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, jti, revokedAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Exists(ctx context.Context, jti string) (bool, error) {
	query := `SELECT COUNT(*) FROM revoked_tokens WHERE jti = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
