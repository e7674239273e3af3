package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewSQLRepositoryManager_ReturnsInterface(t *testing.T) {
	var m RepositoryManager = NewSQLRepositoryManager(dbx.DialectPostgres)
	assert.NotNil(t, m)
	assert.Equal(t, dbx.DialectPostgres, NewSQLRepositoryManager(dbx.DialectPostgres).Dialect())
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewSQLRepositoryManager(dbx.DialectPostgres)

	if u := m.Users(db); u == nil {
		t.Fatal("Users() nil")
	}
	if rt := m.RevokedTokens(db); rt == nil {
		t.Fatal("RevokedTokens() nil")
	}

	var _ users.Repository = m.Users(db)
	var _ revokedtokens.Repository = m.RevokedTokens(db)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewSQLRepositoryManager(dbx.DialectPostgres)
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewSQLRepositoryManager(dbx.DialectPostgres)
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

// The schema and both repositories run end to end on SQLite.
func TestSQLite_MigrateAndUse(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := dbx.Open(ctx, "file:repomanager_it?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewSQLRepositoryManager(dialect)
	require.NoError(t, m.RunMigrations(ctx, db))

	ur := m.Users(db)
	exp := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	u := &models.User{
		FirstName: "Ada", SecondName: "Lovelace", Username: "ada", Email: "Ada@X.com",
		PasswordHash: "hash", Verification: models.OneTimeToken{Token: "vtok", Expiry: &exp},
	}
	require.NoError(t, ur.Create(ctx, u))

	err = ur.Create(ctx, &models.User{Username: "ada", Email: "other@x.com"})
	require.Error(t, err)

	got, err := ur.GetByEmailFold(ctx, "ada@x.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.Verification.Expiry)
	assert.True(t, exp.Equal(*got.Verification.Expiry))

	ok, err := ur.VerificationTokenExists(ctx, "vtok")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ur.Activate(ctx, u.ID, "vtok"))
	require.Error(t, ur.Activate(ctx, u.ID, "vtok"))

	got, err = ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.False(t, got.Verification.Issued())

	rt := m.RevokedTokens(db)
	require.NoError(t, rt.Create(ctx, "jti-1", time.Now()))
	require.NoError(t, rt.Create(ctx, "jti-1", time.Now()))
	revoked, err := rt.Exists(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
