package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/metrics"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
)

// SignUpInput is the registration request.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AccountService provides sign-up, sign-in, logout and request
// authentication on top of TokenIssuer.
type AccountService struct {
	repos   repomanager.RepositoryManager
	tx      dbx.Transactor
	codec   *auth.Codec
	issuer  *TokenIssuer
	metrics *metrics.Recorder
	log     logging.Logger
}

func NewAccountService(repos repomanager.RepositoryManager, tx dbx.Transactor, codec *auth.Codec, issuer *TokenIssuer, m *metrics.Recorder, log logging.Logger) *AccountService {
	return &AccountService{
		repos:   repos,
		tx:      tx,
		codec:   codec,
		issuer:  issuer,
		metrics: m,
		log:     log.With("module", "accounts"),
	}
}

// SignUp registers a user with the default role.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (models.User, error) {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return models.User{}, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if in.Password == "" {
		return models.User{}, fmt.Errorf("%w: empty password", common.ErrorValidation)
	}

	var user models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		user, err = s.repos.Users(db).Create(ctx, models.Registration{
			Email:     in.Email,
			Password:  in.Password,
			FirstName: in.FirstName,
			LastName:  in.LastName,
		}, common.DefaultRole)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return models.User{}, common.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// SignIn verifies credentials and issues a token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.TokenPair, error) {
	users := s.repos.Users(s.tx.Conn())

	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.SignIn(ctx, false)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := users.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.SignIn(ctx, false)
		s.log.Warn(ctx, "sign-in with wrong password", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.SignIn(ctx, true)
	return pair, nil
}

// Revoke invalidates a refresh token (logout). Revoking twice is not an error.
func (s *AccountService) Revoke(ctx context.Context, refreshToken string) error {
	store := s.repos.RefreshTokens(s.tx.Conn())

	rec, err := store.GetByToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := store.Revoke(ctx, rec.ID); err != nil && !errors.Is(err, common.ErrConflict) {
		return fmt.Errorf("revoke: %w", err)
	}
	s.log.Info(ctx, "refresh token revoked", "user_id", rec.UserID, "record_id", rec.ID)
	return nil
}

// RevokeAll revokes every refresh token of the user owning accessToken
// and returns how many were revoked.
func (s *AccountService) RevokeAll(ctx context.Context, accessToken string) (int64, error) {
	claims, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	conn := s.tx.Conn()
	user, err := s.repos.Users(conn).FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrInvalidToken
		}
		return 0, fmt.Errorf("find user: %w", err)
	}

	n, err := s.repos.RefreshTokens(conn).RevokeAllForUser(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("revoke all: %w", err)
	}
	s.log.Info(ctx, "all refresh tokens revoked", "user_id", user.ID, "count", n)
	return n, nil
}

// Authenticate validates an access token for an API request, including
// expiry, issuer and audience.
func (s *AccountService) Authenticate(_ context.Context, accessToken string) (*auth.Claims, error) {
	d, err := s.codec.Decode(accessToken, auth.DecodeOptions{CheckExpiry: true})
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !strings.EqualFold(d.Algorithm, s.codec.Algorithm()) {
		return nil, common.ErrInvalidToken
	}
	return d.Claims, nil
}
