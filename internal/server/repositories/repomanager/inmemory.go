package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/users"
)

// InMemoryRepositoryManager hands out one shared in-memory repository of
// each kind and ignores the DBTX argument. Pair it with dbx.NopTransactor.
type InMemoryRepositoryManager struct {
	users         *users.InMemoryRepository
	refreshTokens *refreshtokens.InMemoryRepository
}

func NewInMemoryRepositoryManager(bcryptCost int) *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:         users.NewInMemoryRepository(bcryptCost),
		refreshTokens: refreshtokens.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

// RunMigrations is a no-op.
func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}
