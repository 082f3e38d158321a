package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bookauth/internal/client/config"
	"github.com/dmitrijs2005/bookauth/internal/client/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "none", args: nil, want: []string{}},
		{name: "command only", args: []string{"me"}, want: []string{"me"}},
		{name: "flags before command", args: []string{"-a", "host:1", "-t", "3", "signin"}, want: []string{"signin"}},
		{name: "config file and equals form", args: []string{"-c", "cfg.json", "-d=s.db", "renew"}, want: []string{"renew"}},
		{name: "flags after command", args: []string{"logout", "-a", "host:1"}, want: []string{"logout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Args(tt.args))
		})
	}
}

func TestRestore(t *testing.T) {
	t.Run("saved session", func(t *testing.T) {
		app := testApp(&fakeAuth{restoreEmail: "reader@example.com"})
		require.NoError(t, app.restore(context.Background()))
		assert.True(t, app.isLoggedIn())
		assert.Equal(t, "(reader@example.com)", app.getStatus())
	})

	t.Run("nothing saved", func(t *testing.T) {
		app := testApp(&fakeAuth{restoreErr: services.ErrNoSession})
		require.NoError(t, app.restore(context.Background()))
		assert.False(t, app.isLoggedIn())
	})

	t.Run("storage error", func(t *testing.T) {
		app := testApp(&fakeAuth{restoreErr: errors.New("disk")})
		require.Error(t, app.restore(context.Background()))
	})
}

func TestRun_SingleCommand(t *testing.T) {
	lines := capturePrint(t)
	fa := &fakeAuth{}
	app := testApp(fa)

	require.NoError(t, app.Run(context.Background(), []string{"ping"}))
	assert.Equal(t, []string{"ping"}, fa.calls)
	assert.Equal(t, []string{"OK"}, *lines)
	assert.True(t, fa.closed)

	err := testApp(&fakeAuth{}).Run(context.Background(), []string{"bogus"})
	var unknown ErrUnknownCommand
	require.ErrorAs(t, err, &unknown)
}

func TestRun_REPL(t *testing.T) {
	capturePrint(t)
	fa := &fakeAuth{}
	app := newApp(&config.Config{}, fa, strings.NewReader("ping\nexit\n"), &bytes.Buffer{})

	require.NoError(t, app.Run(context.Background(), nil))
	assert.Equal(t, []string{"ping"}, fa.calls)
	assert.False(t, fa.hadDeadline, "no timeout configured")
	assert.True(t, fa.closed)
}

func TestNewApp_FreshSessionDatabase(t *testing.T) {
	cfg := &config.Config{
		ServerEndpointAddr: "127.0.0.1:1",
		SessionDBPath:      filepath.Join(t.TempDir(), "session.db"),
	}

	app, err := NewApp(cfg)
	require.NoError(t, err)
	assert.False(t, app.isLoggedIn())
	require.NoError(t, app.authService.Close(context.Background()))
}
