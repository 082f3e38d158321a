package auth

import "errors"

var (
	ErrEncoding         = errors.New("token encoding failed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")
	ErrExpired          = errors.New("token is expired")
	ErrInvalidClaims    = errors.New("token claims are invalid")
)
