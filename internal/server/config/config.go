// Package config handles configuration for the bookauth server,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds runtime settings for the bookauth server.
//
// Fields:
//   - EndpointAddrGRPC / EndpointAddrHTTP: bind addresses; an empty HTTP address disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty runs on in-memory stores.
//   - RedisAddr: Redis address for rate limiting and replay tracking. Empty disables both.
//   - SecretKey: HMAC secret for signing access tokens (HS512). Do not use test defaults in prod.
//   - Issuer / Audience: iss and aud written into, and checked on, access tokens.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - RateLimitPerMinute: per-client budget for sign-in and renewal.
//   - LogFormat: "json" (slog) or "zap".
//   - TelemetryEndpoint: OTLP/gRPC collector URL for traces ("http://collector:4317").
//     Empty keeps spans in-process.
type Config struct {
	EndpointAddrGRPC             string
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	RedisAddr                    string
	SecretKey                    string
	Issuer                       string
	Audience                     string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	RateLimitPerMinute           int
	LogFormat                    string
	TelemetryEndpoint            string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.RedisAddr = ""
	c.SecretKey = "secretKey"
	c.Issuer = "bookauth"
	c.Audience = "bookstore"
	c.AccessTokenValidityDuration = 20 * time.Minute
	c.RefreshTokenValidityDuration = 1 * time.Hour
	c.RateLimitPerMinute = 30
	c.LogFormat = "json"
	c.TelemetryEndpoint = ""
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("access token validity must be positive, got %s", c.AccessTokenValidityDuration))
	}
	if c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("refresh token validity must be positive, got %s", c.RefreshTokenValidityDuration))
	}
	if c.AccessTokenValidityDuration > 0 && c.RefreshTokenValidityDuration > 0 &&
		c.RefreshTokenValidityDuration <= c.AccessTokenValidityDuration {
		errs = append(errs, errors.New("refresh token validity must exceed access token validity"))
	}
	if c.EndpointAddrGRPC == "" && c.EndpointAddrHTTP == "" {
		errs = append(errs, errors.New("no endpoint address configured"))
	}
	switch c.LogFormat {
	case "json", "zap":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
