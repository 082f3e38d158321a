// Package users provides the user store the token engine depends on:
// lookup by email or ID, role listing, account creation and password checks.
package users

import (
	"context"

	"github.com/dmitrijs2005/bookauth/internal/server/models"
)

// Repository is the user store contract. Lookups return models.User without
// roles; GetRoles lists them separately.
type Repository interface {
	// FindByEmail matches email case-insensitively. Returns common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (models.User, error)

	// FindByID returns common.ErrorNotFound for unknown IDs.
	FindByID(ctx context.Context, id string) (models.User, error)

	// GetRoles returns role names sorted alphabetically.
	GetRoles(ctx context.Context, userID string) ([]string, error)

	// Create stores a new account with a hashed password and assigns roles.
	// A taken email yields common.ErrAlreadyExists.
	Create(ctx context.Context, reg models.Registration, roles ...string) (models.User, error)

	// VerifyPassword reports whether password matches the stored hash.
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
}
