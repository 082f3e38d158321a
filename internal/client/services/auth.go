// Package services contains application services for the bookauth client.
// This file defines the authentication service: sign-up, sign-in, session
// restore across restarts, logout and profile lookup.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookauth/internal/client/client"
	"github.com/dmitrijs2005/bookauth/internal/client/repositories/session"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
)

// ErrNoSession is returned by Restore when nothing is saved locally.
var ErrNoSession = errors.New("no saved session")

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - SignIn: authenticate against the server and persist the session locally.
//   - Restore: load a saved session into the client.
//   - Logout / LogoutAll: revoke on the server and wipe the local session.
//
// Token pairs renewed by the client in the background are persisted too.
type AuthService interface {
	SignUp(ctx context.Context, email, password, firstName, lastName string) error
	SignIn(ctx context.Context, email, password string) error
	Restore(ctx context.Context) (string, error)
	Me(ctx context.Context) (*client.Profile, error)
	Renew(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService binds the API client to the local session database and
// persists every token change the client reports.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	a := &authService{client: c, db: db}
	c.OnTokens(func(ctx context.Context, t client.Tokens) {
		// a failed save only costs a sign-in on the next start
		_ = a.saveTokens(ctx, t)
	})
	return a
}

func (a *authService) sessionRepo(db dbx.DBTX) session.Repository {
	return session.NewSQLiteRepository(db)
}

func (a *authService) saveTokens(ctx context.Context, t client.Tokens) error {
	if t.RefreshToken == "" {
		return a.sessionRepo(a.db).Clear(ctx)
	}
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.sessionRepo(tx)
		if err := repo.Set(ctx, session.KeyAccessToken, []byte(t.AccessToken)); err != nil {
			return err
		}
		return repo.Set(ctx, session.KeyRefreshToken, []byte(t.RefreshToken))
	})
}

func (a *authService) SignUp(ctx context.Context, email, password, firstName, lastName string) error {
	return a.client.SignUp(ctx, email, password, firstName, lastName)
}

// SignIn authenticates and remembers email alongside the tokens, which the
// client hook has already saved.
func (a *authService) SignIn(ctx context.Context, email, password string) error {
	if err := a.client.SignIn(ctx, email, password); err != nil {
		return fmt.Errorf("sign in error: %w", err)
	}
	if err := a.sessionRepo(a.db).Set(ctx, session.KeyEmail, []byte(email)); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

// Restore loads the saved session and returns its email.
func (a *authService) Restore(ctx context.Context) (string, error) {
	all, err := a.sessionRepo(a.db).List(ctx)
	if err != nil {
		return "", err
	}
	refresh := all[session.KeyRefreshToken]
	if len(refresh) == 0 {
		return "", ErrNoSession
	}
	a.client.SetTokens(client.Tokens{
		AccessToken:  string(all[session.KeyAccessToken]),
		RefreshToken: string(refresh),
	})
	return string(all[session.KeyEmail]), nil
}

func (a *authService) Me(ctx context.Context) (*client.Profile, error) {
	return a.client.Me(ctx)
}

func (a *authService) Renew(ctx context.Context) error {
	return a.client.Renew(ctx)
}

// Logout revokes this session's refresh token. The local session is wiped
// even if the server could not be reached.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Revoke(ctx)
	if cerr := a.sessionRepo(a.db).Clear(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	if errors.Is(err, client.ErrNotFound) {
		return nil
	}
	return err
}

func (a *authService) LogoutAll(ctx context.Context) (int64, error) {
	n, err := a.client.RevokeAll(ctx)
	if err != nil {
		return 0, err
	}
	return n, a.sessionRepo(a.db).Clear(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases the client connection and the session database.
func (a *authService) Close(ctx context.Context) error {
	return errors.Join(a.client.Close(), a.db.Close())
}
