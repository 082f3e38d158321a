package config

import "github.com/dmitrijs2005/bookauth/internal/flagx"

// parseEnv overlays BOOKAUTH_* environment variables. Durations use
// time.ParseDuration syntax ("20m", "1h"). The standard
// OTEL_EXPORTER_OTLP_ENDPOINT is honoured, BOOKAUTH_OTLP_ENDPOINT wins.
func parseEnv(config *Config) {
	flagx.EnvString(&config.EndpointAddrGRPC, "BOOKAUTH_GRPC_ADDR")
	flagx.EnvString(&config.EndpointAddrHTTP, "BOOKAUTH_HTTP_ADDR")
	flagx.EnvString(&config.DatabaseDSN, "BOOKAUTH_DATABASE_DSN")
	flagx.EnvString(&config.RedisAddr, "BOOKAUTH_REDIS_ADDR")
	flagx.EnvString(&config.SecretKey, "BOOKAUTH_SECRET_KEY")
	flagx.EnvString(&config.Issuer, "BOOKAUTH_ISSUER")
	flagx.EnvString(&config.Audience, "BOOKAUTH_AUDIENCE")
	flagx.EnvDuration(&config.AccessTokenValidityDuration, "BOOKAUTH_ACCESS_TTL")
	flagx.EnvDuration(&config.RefreshTokenValidityDuration, "BOOKAUTH_REFRESH_TTL")
	flagx.EnvInt(&config.RateLimitPerMinute, "BOOKAUTH_RATE_LIMIT")
	flagx.EnvString(&config.LogFormat, "BOOKAUTH_LOG_FORMAT")
	flagx.EnvString(&config.TelemetryEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	flagx.EnvString(&config.TelemetryEndpoint, "BOOKAUTH_OTLP_ENDPOINT")
}
