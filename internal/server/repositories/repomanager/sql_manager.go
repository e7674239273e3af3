// Package repomanager provides a concrete RepositoryManager for PostgreSQL
// and SQLite, wiring together repository constructors and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/server/migrations"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends SQL-backed repository implementations for one
// dialect and exposes a schema migration hook.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

// RevokedTokens returns a revokedtokens.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) RevokedTokens(db dbx.DBTX) revokedtokens.Repository {
	return revokedtokens.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

// Dialect reports the backend this manager was built for.
func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}
