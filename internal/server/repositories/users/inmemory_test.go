package users

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestInMemory_CreateAndLookup(t *testing.T) {
	repo := NewInMemoryRepository(bcrypt.MinCost)
	ctx := context.Background()

	created, err := repo.Create(ctx, models.Registration{Email: "Reader@Example.com", Password: "pw"}, "Customer", "Admin")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", created.Email)

	byEmail, err := repo.FindByEmail(ctx, "READER@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Empty(t, byEmail.Roles, "lookups do not carry roles")

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, byEmail, byID)

	roles, err := repo.GetRoles(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "Customer"}, roles)

	_, err = repo.Create(ctx, models.Registration{Email: "reader@example.com", Password: "x"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestInMemory_NotFound(t *testing.T) {
	repo := NewInMemoryRepository(bcrypt.MinCost)
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = repo.FindByID(ctx, "none")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = repo.VerifyPassword(ctx, "none", "pw")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	roles, err := repo.GetRoles(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestInMemory_VerifyPassword(t *testing.T) {
	repo := NewInMemoryRepository(bcrypt.MinCost)
	ctx := context.Background()

	u, err := repo.Create(ctx, models.Registration{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)

	ok, err := repo.VerifyPassword(ctx, u.ID, "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.VerifyPassword(ctx, u.ID, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
