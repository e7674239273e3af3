package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
	}{
		{"postgres://u:p@localhost:5432/deliveroo?sslmode=disable", DialectPostgres, "postgres://u:p@localhost:5432/deliveroo?sslmode=disable"},
		{"host=localhost user=u dbname=d", DialectPostgres, "host=localhost user=u dbname=d"},
		{"sqlite:/tmp/deliveroo.db", DialectSQLite, "/tmp/deliveroo.db"},
		{"file:auth?mode=memory&cache=shared", DialectSQLite, "file:auth?mode=memory&cache=shared"},
		{":memory:", DialectSQLite, ":memory:"},
	}
	for _, tc := range tests {
		t.Run(tc.dsn, func(t *testing.T) {
			d, src := DetectDialect(tc.dsn)
			assert.Equal(t, tc.dialect, d)
			assert.Equal(t, tc.source, src)
		})
	}
}

func TestGooseDialect(t *testing.T) {
	assert.Equal(t, "pgx", DialectPostgres.GooseDialect())
	assert.Equal(t, "sqlite3", DialectSQLite.GooseDialect())
}

func TestRebindQuery(t *testing.T) {
	q := `UPDATE users SET is_active = $1 WHERE id = $2 AND verification_token = $3`
	assert.Equal(t, q, RebindQuery(DialectPostgres, q))
	assert.Equal(t,
		`UPDATE users SET is_active = ?1 WHERE id = ?2 AND verification_token = ?3`,
		RebindQuery(DialectSQLite, q))
	assert.Equal(t, `SELECT ?10, ?1`, RebindQuery(DialectSQLite, `SELECT $10, $1`))
}

func TestRebind_PostgresPassThrough(t *testing.T) {
	db := newTxDB(t)
	assert.Same(t, db, Rebind(DialectPostgres, db))
}

func TestRebind_SQLiteExecutesDollarPlaceholders(t *testing.T) {
	db := newTxDB(t)
	ctx := context.Background()
	r := Rebind(DialectSQLite, db)

	_, err := r.ExecContext(ctx, `INSERT INTO items(id, name) VALUES ($1, $2)`, 100, "rebound")
	require.NoError(t, err)

	var v string
	require.NoError(t, r.QueryRowContext(ctx, `SELECT name FROM items WHERE id = $1`, 100).Scan(&v))
	assert.Equal(t, "rebound", v)

	rows, err := r.QueryContext(ctx, `SELECT id FROM items WHERE name = $1`, "rebound")
	require.NoError(t, err)
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 1, n)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, d, err := Open(context.Background(), "file:dbx_open?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, DialectSQLite, d)
}

func TestOpen_SQLiteFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "deliveroo.db")

	db, d, err := Open(context.Background(), "sqlite:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, DialectSQLite, d)

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestIsSQLiteFilePath(t *testing.T) {
	assert.True(t, isSQLiteFilePath("data/x.db"))
	assert.False(t, isSQLiteFilePath(":memory:"))
	assert.False(t, isSQLiteFilePath("file:x?mode=memory"))
	assert.False(t, isSQLiteFilePath(""))
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, _, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("db error: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newTxDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS u (email TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM u`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO u(email) VALUES ('a@x.io')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO u(email) VALUES ('a@x.io')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation_Other(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}
