package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/deliveroo/internal/filex"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect names the SQL backend behind a *sql.DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// GooseDialect returns the goose dialect name for d.
func (d Dialect) GooseDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// DetectDialect picks the backend from the DSN. "sqlite:" and "file:" DSNs
// select SQLite, anything else is handed to pgx.
func DetectDialect(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite:")
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return DialectSQLite, dsn
	default:
		return DialectPostgres, dsn
	}
}

// Open opens and pings the database described by dsn.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	if dsn == "" {
		return nil, "", errors.New("empty database dsn")
	}

	dialect, source := DetectDialect(dsn)
	driver := "pgx"
	if dialect == DialectSQLite {
		driver = "sqlite"
		if isSQLiteFilePath(source) {
			if _, err := filex.EnsureParentDir(source); err != nil {
				return nil, "", err
			}
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// in-memory databases vanish with their last connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}

	return db, dialect, nil
}

// isSQLiteFilePath reports whether source is a plain file path rather than a
// URI or an in-memory database.
func isSQLiteFilePath(source string) bool {
	return source != "" && source != ":memory:" && !strings.HasPrefix(source, "file:")
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// RebindQuery rewrites PostgreSQL $N placeholders into SQLite ?N ones.
func RebindQuery(d Dialect, query string) string {
	if d != DialectSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

// Rebind wraps db so that queries written with $N placeholders run on d.
// For PostgreSQL db is returned unchanged.
func Rebind(d Dialect, db DBTX) DBTX {
	if d != DialectSQLite {
		return db
	}
	return &rebound{db: db, dialect: d}
}

type rebound struct {
	db      DBTX
	dialect Dialect
}

func (r *rebound) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, RebindQuery(r.dialect, query), args...)
}

func (r *rebound) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, RebindQuery(r.dialect, query), args...)
}

func (r *rebound) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, RebindQuery(r.dialect, query), args...)
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure on either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}
