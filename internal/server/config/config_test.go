package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return &Config{
		EndpointAddrGRPC:             ":50051",
		EndpointAddrHTTP:             ":8080",
		SecretKey:                    "secretKey",
		Issuer:                       "bookauth",
		Audience:                     "bookstore",
		AccessTokenValidityDuration:  20 * time.Minute,
		RefreshTokenValidityDuration: time.Hour,
		RateLimitPerMinute:           30,
		LogFormat:                    "json",
	}
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Empty(t, cmp.Diff(defaultConfig(), &c))
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")
	assert.Empty(t, cmp.Diff(defaultConfig(), c))
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Setenv("BOOKAUTH_SECRET_KEY", "from-env")
	t.Setenv("BOOKAUTH_ISSUER", "env-issuer")
	os.Args = []string{"testbin", "-s", "from-flag"}

	c := LoadConfig()

	assert.Equal(t, "from-flag", c.SecretKey)
	assert.Equal(t, "env-issuer", c.Issuer)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: "secret key is empty"},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenValidityDuration = 0 }, wantErr: "access token validity must be positive"},
		{name: "negative refresh ttl", mutate: func(c *Config) { c.RefreshTokenValidityDuration = -time.Minute }, wantErr: "refresh token validity must be positive"},
		{name: "inverted ttls", mutate: func(c *Config) { c.RefreshTokenValidityDuration = 10 * time.Minute }, wantErr: "must exceed access token validity"},
		{name: "no endpoints", mutate: func(c *Config) { c.EndpointAddrGRPC, c.EndpointAddrHTTP = "", "" }, wantErr: "no endpoint address"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
