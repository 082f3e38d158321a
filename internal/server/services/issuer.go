// Package services contains server-side business logic: token issuance,
// the refresh-token renewal protocol and account operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/metrics"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	refreshTokenBytes  = 32
	maxRefreshAttempts = 3
)

// IssuerConfig holds token lifetimes.
type IssuerConfig struct {
	AccessTokenValidity  time.Duration
	RefreshTokenValidity time.Duration
}

// TokenIssuer mints an access token and a matching refresh-token record.
type TokenIssuer struct {
	repos    repomanager.RepositoryManager
	tx       dbx.Transactor
	codec    *auth.Codec
	cfg      IssuerConfig
	log      logging.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
	newToken func() (string, error)
}

type IssuerOption func(*TokenIssuer)

// WithIssuerClock sets the clock used for IssuedAt/ExpiredAt of records.
// Pair it with auth.WithClock on the codec.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

// WithIssuerMetrics enables issuance counters.
func WithIssuerMetrics(m *metrics.Recorder) IssuerOption {
	return func(i *TokenIssuer) { i.metrics = m }
}

// withTokenSource replaces the refresh value generator in tests.
func withTokenSource(f func() (string, error)) IssuerOption {
	return func(i *TokenIssuer) { i.newToken = f }
}

func NewTokenIssuer(repos repomanager.RepositoryManager, tx dbx.Transactor, codec *auth.Codec, cfg IssuerConfig, log logging.Logger, opts ...IssuerOption) *TokenIssuer {
	i := &TokenIssuer{
		repos: repos,
		tx:    tx,
		codec: codec,
		cfg:   cfg,
		log:   log.With("module", "issuer"),
		now:   time.Now,
		newToken: func() (string, error) {
			return common.MakeRandBase64String(refreshTokenBytes)
		},
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue creates a new token pair for user outside any transaction.
func (i *TokenIssuer) Issue(ctx context.Context, user models.User) (*models.TokenPair, error) {
	return i.IssueTx(ctx, user, i.tx.Conn())
}

// IssueTx creates a new token pair for user using db, so the refresh record
// is written in the caller's transaction when db is one.
func (i *TokenIssuer) IssueTx(ctx context.Context, user models.User, db dbx.DBTX) (*models.TokenPair, error) {
	roles, err := i.repos.Users(db).GetRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}

	jti := uuid.NewString()
	access, err := i.codec.Encode(auth.Claims{
		Email:            user.Email,
		Roles:            roles,
		RegisteredClaims: jwt.RegisteredClaims{ID: jti},
	}, i.cfg.AccessTokenValidity)
	if err != nil {
		return nil, fmt.Errorf("encode access token: %w", err)
	}

	store := i.repos.RefreshTokens(db)
	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		value, err := i.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}

		now := i.now().UTC()
		rec := &models.RefreshToken{
			ID:        uuid.NewString(),
			JwtID:     jti,
			UserID:    user.ID,
			Token:     value,
			IssuedAt:  now,
			ExpiredAt: now.Add(i.cfg.RefreshTokenValidity),
		}

		err = dbx.Savepoint(ctx, db, "issue_refresh", func() error {
			return store.Add(ctx, rec)
		})
		if err == nil {
			i.metrics.TokenIssued(ctx)
			i.log.Debug(ctx, "token pair issued", "user_id", user.ID, "record_id", rec.ID)
			return &models.TokenPair{AccessToken: access, RefreshToken: value}, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
		i.log.Warn(ctx, "refresh token value collision, regenerating", "user_id", user.ID, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: refresh token collided %d times", common.ErrorInternal, maxRefreshAttempts)
}
