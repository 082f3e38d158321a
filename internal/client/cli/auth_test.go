package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/client/client"
	"github.com/dmitrijs2005/bookauth/internal/client/config"
	"github.com/dmitrijs2005/bookauth/internal/client/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	email    string
	password string
	names    []string

	restoreEmail string
	restoreErr   error
	err          error
	revoked      int64
	closed       bool
	hadDeadline  bool
	calls        []string
}

var _ services.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) note(ctx context.Context, name string) {
	_, f.hadDeadline = ctx.Deadline()
	f.calls = append(f.calls, name)
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, firstName, lastName string) error {
	f.note(ctx, "signup")
	f.email, f.password, f.names = email, password, []string{firstName, lastName}
	return f.err
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) error {
	f.note(ctx, "signin")
	f.email, f.password = email, password
	return f.err
}

func (f *fakeAuth) Restore(ctx context.Context) (string, error) {
	return f.restoreEmail, f.restoreErr
}

func (f *fakeAuth) Me(ctx context.Context) (*client.Profile, error) {
	f.note(ctx, "me")
	if f.err != nil {
		return nil, f.err
	}
	return &client.Profile{Email: f.email, Roles: []string{"Customer"}}, nil
}

func (f *fakeAuth) Renew(ctx context.Context) error {
	f.note(ctx, "renew")
	return f.err
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.note(ctx, "logout")
	return f.err
}

func (f *fakeAuth) LogoutAll(ctx context.Context) (int64, error) {
	f.note(ctx, "logout-all")
	return f.revoked, f.err
}

func (f *fakeAuth) Ping(ctx context.Context) error {
	f.note(ctx, "ping")
	return f.err
}

func (f *fakeAuth) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func stubInputs(t *testing.T, answers []string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	next := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if next >= len(answers) {
			return "", io.EOF
		}
		next++
		return answers[next-1], nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func testApp(fa *fakeAuth) *App {
	cfg := &config.Config{RequestTimeout: time.Second}
	return newApp(cfg, fa, strings.NewReader(""), &bytes.Buffer{})
}

func TestSignUp_PromptsAndDoesNotSignIn(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"reader@example.com", "Ada", "Lovelace"}, []byte("pa55word"))

	fa := &fakeAuth{}
	app := testApp(fa)

	require.NoError(t, app.SignUp(context.Background()))
	assert.Equal(t, "reader@example.com", fa.email)
	assert.Equal(t, "pa55word", fa.password)
	assert.Equal(t, []string{"Ada", "Lovelace"}, fa.names)
	assert.True(t, fa.hadDeadline, "server calls run with the request timeout")
	assert.False(t, app.isLoggedIn())
}

func TestSignIn(t *testing.T) {
	lines := capturePrint(t)
	pw := []byte("pa55word")
	stubInputs(t, []string{" Reader@Example.com "}, pw)

	fa := &fakeAuth{}
	app := testApp(fa)

	require.NoError(t, app.SignIn(context.Background()))
	assert.True(t, app.isLoggedIn())
	assert.Equal(t, "(reader@example.com)", app.getStatus())
	assert.Equal(t, "pa55word", fa.password)
	assert.Equal(t, make([]byte, len(pw)), pw, "password is wiped")
	assert.Contains(t, *lines, "Signed in")
}

func TestSignIn_Failure(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"reader@example.com"}, []byte("bad"))

	fa := &fakeAuth{err: client.ErrUnauthorized}
	app := testApp(fa)

	require.ErrorIs(t, app.SignIn(context.Background()), client.ErrUnauthorized)
	assert.False(t, app.isLoggedIn())
}

func TestCommandsNeedSession(t *testing.T) {
	capturePrint(t)
	fa := &fakeAuth{}
	app := testApp(fa)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context) error{
		"me":         app.Me,
		"renew":      app.Renew,
		"logout":     app.Logout,
		"logout-all": app.LogoutAll,
	} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, fn(ctx), errNotSignedIn)
		})
	}
	assert.Empty(t, fa.calls)
}

func TestMe(t *testing.T) {
	lines := capturePrint(t)
	fa := &fakeAuth{email: "reader@example.com"}
	app := testApp(fa)
	app.loggedIn = true

	require.NoError(t, app.Me(context.Background()))
	assert.Equal(t, []string{"email: reader@example.com", "roles: Customer"}, *lines)
}

func TestSessionExpiredSignsOut(t *testing.T) {
	capturePrint(t)
	fa := &fakeAuth{err: client.ErrSessionExpired}
	app := testApp(fa)
	app.loggedIn, app.email = true, "reader@example.com"

	require.ErrorIs(t, app.Renew(context.Background()), client.ErrSessionExpired)
	assert.False(t, app.isLoggedIn())
	assert.Empty(t, app.getStatus())
}

func TestTransientErrorKeepsSession(t *testing.T) {
	capturePrint(t)
	fa := &fakeAuth{err: client.ErrUnavailable}
	app := testApp(fa)
	app.loggedIn = true

	require.ErrorIs(t, app.Me(context.Background()), client.ErrUnavailable)
	assert.True(t, app.isLoggedIn())
}

func TestLogout(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		lines := capturePrint(t)
		fa := &fakeAuth{}
		app := testApp(fa)
		app.loggedIn = true

		require.NoError(t, app.Logout(context.Background()))
		assert.False(t, app.isLoggedIn())
		assert.Contains(t, *lines, "Signed out")
	})

	t.Run("server error still forgets the session", func(t *testing.T) {
		capturePrint(t)
		fa := &fakeAuth{err: client.ErrUnavailable}
		app := testApp(fa)
		app.loggedIn = true

		require.ErrorIs(t, app.Logout(context.Background()), client.ErrUnavailable)
		assert.False(t, app.isLoggedIn())
	})
}

func TestLogoutAll(t *testing.T) {
	lines := capturePrint(t)
	fa := &fakeAuth{revoked: 3}
	app := testApp(fa)
	app.loggedIn = true

	require.NoError(t, app.LogoutAll(context.Background()))
	assert.False(t, app.isLoggedIn())
	assert.Contains(t, *lines, "Signed out of 3 session(s)")
}

func TestPing(t *testing.T) {
	capturePrint(t)
	app := testApp(&fakeAuth{err: errors.New("down")})
	require.Error(t, app.Ping(context.Background()))

	lines := capturePrint(t)
	app = testApp(&fakeAuth{})
	require.NoError(t, app.Ping(context.Background()))
	assert.Equal(t, []string{"OK"}, *lines)
}
