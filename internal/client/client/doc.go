// Package client contains client-side building blocks for bookauth.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the bookauth server: SignUp/SignIn, Renew, Revoke/RevokeAll, Me
//     and Ping.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects the access token via an interceptor, transparently
//     renews an expired access token once per request, and maps gRPC status
//     codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrSessionExpired.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. Concurrent requests that all hit an
// expired access token trigger a single renewal.
package client
