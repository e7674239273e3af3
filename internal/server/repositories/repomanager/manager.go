package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// rebind them to the transaction they are running in.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
}
