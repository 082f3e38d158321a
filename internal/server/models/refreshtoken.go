// Package models defines server-side data models persisted in the database.
package models

import "time"

// RefreshToken is the server-side record of a refresh token. IsUsed and
// IsRevoked are terminal: once true they are never reset.
type RefreshToken struct {
	ID        string
	JwtID     string
	UserID    string
	Token     string
	IsUsed    bool
	IsRevoked bool
	IssuedAt  time.Time
	ExpiredAt time.Time
}

// Redeemable reports whether the record has been neither used nor revoked.
func (t *RefreshToken) Redeemable() bool {
	return !t.IsUsed && !t.IsRevoked
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
