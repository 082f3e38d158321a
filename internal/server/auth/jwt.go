package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an access token. ID carries the jti that binds
// the token to its refresh record.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// DecodeOptions controls validation on Decode.
type DecodeOptions struct {
	// CheckExpiry enables time-based checks along with issuer and audience.
	// Renewal decodes with it off since it expects an expired token.
	CheckExpiry bool
}

// Decoded is a token whose signature has been verified.
type Decoded struct {
	Claims    *Claims
	Algorithm string
	// ExpiresAt is the exp claim in UTC, zero when absent.
	ExpiresAt time.Time
}

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

type Option func(*Codec)

// WithClock replaces time.Now for minting and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// Codec encodes and decodes access tokens with a SigningKey.
type Codec struct {
	key    SigningKey
	method jwt.SigningMethod
	now    func() time.Time
}

func NewCodec(key SigningKey, opts ...Option) *Codec {
	method := jwt.GetSigningMethod(key.Algorithm)
	if method == nil {
		method = jwt.SigningMethodHS512
	}
	c := &Codec{key: key, method: method, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Algorithm is the alg header written by Encode.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Encode signs claims with iss, aud, iat and exp = now + lifetime filled in.
func (c *Codec) Encode(claims Claims, lifetime time.Duration) (string, error) {
	if len(c.key.Secret) == 0 {
		return "", fmt.Errorf("%w: empty secret", ErrEncoding)
	}

	now := c.now()
	claims.Issuer = c.key.Issuer
	claims.Audience = jwt.ClaimStrings{c.key.Audience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies the signature of tokenString and returns its claims and
// header algorithm. Any HMAC algorithm is verified with the secret so the
// caller can decide whether it is acceptable; other algorithms fail as
// ErrInvalidSignature.
func (c *Codec) Decode(tokenString string, opts DecodeOptions) (*Decoded, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(hmacMethods),
		jwt.WithTimeFunc(c.now),
	}
	if opts.CheckExpiry {
		parserOpts = append(parserOpts,
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(c.key.Issuer),
			jwt.WithAudience(c.key.Audience),
		)
	} else {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	d := &Decoded{Claims: claims, Algorithm: token.Method.Alg()}
	if claims.ExpiresAt != nil {
		d.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return d, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.key.Secret, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
