package client

import (
	"context"
)

// Tokens is the session's current token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Profile is the authenticated user as the server sees it.
type Profile struct {
	Email string
	Roles []string
}

type Client interface {
	Close() error
	SignUp(ctx context.Context, email, password, firstName, lastName string) error
	SignIn(ctx context.Context, email, password string) error
	Renew(ctx context.Context) error
	Revoke(ctx context.Context) error
	RevokeAll(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*Profile, error)
	Ping(ctx context.Context) error
	Tokens() Tokens
	SetTokens(t Tokens)
	// OnTokens registers fn to be called whenever the token pair changes.
	OnTokens(fn func(ctx context.Context, t Tokens))
}
