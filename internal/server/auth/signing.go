// Package auth mints and verifies access tokens.
package auth

import "github.com/golang-jwt/jwt/v5"

// SigningKey is the process-wide signing configuration. It is loaded once
// at startup and injected; nothing here reads the environment.
type SigningKey struct {
	Secret    []byte
	Issuer    string
	Audience  string
	Algorithm string
}

// NewSigningKey returns a key that signs with HS512.
func NewSigningKey(secret, issuer, audience string) SigningKey {
	return SigningKey{
		Secret:    []byte(secret),
		Issuer:    issuer,
		Audience:  audience,
		Algorithm: jwt.SigningMethodHS512.Alg(),
	}
}
