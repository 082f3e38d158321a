// Package cli provides the authctl command-line client.
//
// It wires configuration, the local session database and the API client,
// restores a saved session on start, and then either runs a single command
// given on the command line or an interactive REPL:
//
//	authctl -a 127.0.0.1:50051 signin
//	authctl me
//	authctl            # interactive
//
// Expired access tokens are renewed transparently by the API client and the
// new pair is written back to the session database.
package cli
