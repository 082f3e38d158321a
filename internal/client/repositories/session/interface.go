package session

import "context"

// Well-known keys.
const (
	KeyEmail        = "email"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Repository is a key/value store. Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
