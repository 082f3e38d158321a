package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/flagx"
)

var serverFlags = []string{"-a", "-h", "-d", "-r", "-s", "-i", "-u", "-t", "-f", "-l", "-log-format", "-otlp"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string      gRPC bind address (e.g., ":50051")
//	-h string      HTTP bind address (e.g., ":8080")
//	-d string      PostgreSQL DSN
//	-r string      Redis address
//	-s string      HMAC secret key
//	-i string      token issuer
//	-u string      token audience
//	-t int         access token validity, minutes
//	-f int         refresh token validity, minutes
//	-l int         sign-in / renewal requests per minute per client
//	-log-format    "json" or "zap"
//	-otlp string   OTLP/gRPC collector URL for traces
//
// Only flags listed above are parsed; everything else in os.Args is
// filtered out with flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.EndpointAddrHTTP, "h", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "u", config.Audience, "token audience")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("f", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.RateLimitPerMinute, "l", config.RateLimitPerMinute, "rate limit per minute")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format: json or zap")
	fs.StringVar(&config.TelemetryEndpoint, "otlp", config.TelemetryEndpoint, "OTLP collector URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
