// Package refreshtokens declares the server-side repository contract for
// refresh-token records, with PostgreSQL and in-memory implementations.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/bookauth/internal/server/models"
)

// Repository stores refresh-token records. Records are never deleted and
// their IsUsed/IsRevoked flags, once set, are never cleared.
type Repository interface {
	// Add persists a new record. A duplicate token value yields common.ErrConflict.
	Add(ctx context.Context, token *models.RefreshToken) error

	// GetByToken looks a record up by its opaque token value.
	// Returns common.ErrorNotFound when absent.
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Update persists the record's terminal flags. Flags already set in
	// storage stay set whatever the record says.
	Update(ctx context.Context, token *models.RefreshToken) error

	// Retire atomically marks an unused, unrevoked record as used and revoked.
	// If the record is no longer redeemable it returns common.ErrConflict,
	// so at most one caller can win.
	Retire(ctx context.Context, id string) error

	// Revoke atomically marks a record as revoked. Already revoked or unknown
	// records yield common.ErrConflict.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForUser revokes every record of userID that is not revoked yet
	// and returns how many were changed.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}
