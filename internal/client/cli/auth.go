package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bookauth/internal/client/client"
	"github.com/dmitrijs2005/bookauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in, run signin first")

// SignUp prompts for an email, password and name and creates an account.
// It does not sign in.
func (a *App) SignUp(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	firstName, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.SignUp(ctx, email, string(password), firstName, lastName); err != nil {
		return err
	}

	printlnFn("Account created, you can sign in now")
	return nil
}

// SignIn prompts for credentials and starts a new session.
func (a *App) SignIn(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.SignIn(ctx, email, string(password)); err != nil {
		return err
	}

	a.email = strings.ToLower(strings.TrimSpace(email))
	a.loggedIn = true
	printlnFn("Signed in")
	return nil
}

// Me prints the profile behind the current session.
func (a *App) Me(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotSignedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.authService.Me(ctx)
	if err != nil {
		return a.sessionError(err)
	}

	printlnFn(fmt.Sprintf("email: %s", p.Email))
	printlnFn(fmt.Sprintf("roles: %s", strings.Join(p.Roles, ", ")))
	return nil
}

// Renew forces a token renewal.
func (a *App) Renew(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotSignedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Renew(ctx); err != nil {
		return a.sessionError(err)
	}

	printlnFn("Token renewed")
	return nil
}

// Logout revokes the current session on the server and forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotSignedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.authService.Logout(ctx)
	a.forget()
	if err != nil {
		return err
	}

	printlnFn("Signed out")
	return nil
}

// LogoutAll revokes every session of the user.
func (a *App) LogoutAll(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotSignedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.authService.LogoutAll(ctx)
	if err != nil {
		return a.sessionError(err)
	}
	a.forget()

	printlnFn(fmt.Sprintf("Signed out of %d session(s)", n))
	return nil
}

// Ping checks that the server is reachable.
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		return err
	}

	printlnFn("OK")
	return nil
}

func (a *App) forget() {
	a.email = ""
	a.loggedIn = false
}

// sessionError drops the in-memory session once the server has refused to
// renew it.
func (a *App) sessionError(err error) error {
	if errors.Is(err, client.ErrSessionExpired) {
		a.forget()
	}
	return err
}
