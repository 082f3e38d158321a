// Package repomanager vends repository implementations bound to a database
// handle, so services can run the same code inside or outside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
