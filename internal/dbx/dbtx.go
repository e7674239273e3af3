// Package dbx holds the database plumbing the repositories share: the DBTX
// handle, the WithTx transaction runner and the PostgreSQL/SQLite dialect
// layer that lets one set of queries serve both backends.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is what a repository needs to run queries. *sql.DB and *sql.Tx both
// implement it, so a repository never knows whether it sits inside a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside one transaction on db. A nil error from fn commits
// and the commit error, if any, is returned. An error or a panic from fn
// rolls back; the panic then continues up the stack.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return rm.Users(tx).Activate(ctx, id, token)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return tx.Commit()
}
