package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/metrics"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
)

// RenewalFailure classifies why a renewal was refused.
type RenewalFailure int

const (
	FailureNone RenewalFailure = iota
	FailureInvalidToken
	FailureNotExpired
	FailureNotFound
	FailureAlreadyUsed
	FailureRevoked
	FailureMismatch
	FailureUnavailable
	FailureInternal
)

const SuccessMessage = "Renew Token Success"

var failureReasons = map[RenewalFailure]string{
	FailureNone:         SuccessMessage,
	FailureInvalidToken: "invalid token",
	FailureNotExpired:   "access token has not yet expired",
	FailureNotFound:     "refresh token doesn't exist",
	FailureAlreadyUsed:  "refresh token already used",
	FailureRevoked:      "refresh token revoked",
	FailureMismatch:     "token doesn't match",
	FailureUnavailable:  "service temporarily unavailable",
	FailureInternal:     "something went wrong",
}

var failureNames = map[RenewalFailure]string{
	FailureNone:         "success",
	FailureInvalidToken: "invalid_token",
	FailureNotExpired:   "not_expired",
	FailureNotFound:     "not_found",
	FailureAlreadyUsed:  "already_used",
	FailureRevoked:      "revoked",
	FailureMismatch:     "mismatch",
	FailureUnavailable:  "unavailable",
	FailureInternal:     "internal",
}

// Reason is the client-facing message for f.
func (f RenewalFailure) Reason() string {
	if r, ok := failureReasons[f]; ok {
		return r
	}
	return failureReasons[FailureInternal]
}

func (f RenewalFailure) String() string {
	if n, ok := failureNames[f]; ok {
		return n
	}
	return fmt.Sprintf("RenewalFailure(%d)", int(f))
}

// Retryable reports whether the same request may succeed later.
func (f RenewalFailure) Retryable() bool {
	return f == FailureUnavailable
}

// RenewalResult carries either the new token pair or the failure kind.
// Err holds the underlying cause for logging and is never shown to clients.
type RenewalResult struct {
	Failure  RenewalFailure
	Err      error
	Pair     *models.TokenPair
	UserID   string
	RecordID string
}

func (r RenewalResult) OK() bool { return r.Failure == FailureNone }

func (r RenewalResult) Reason() string { return r.Failure.Reason() }

// ReplayTracker records redemption attempts of spent refresh tokens.
type ReplayTracker interface {
	Track(ctx context.Context, recordID string) (int64, error)
}

var (
	errRetireLost  = errors.New("refresh token retired concurrently")
	errUnknownUser = errors.New("refresh token owner not found")
)

// RenewalService exchanges an expired access token and its refresh token
// for a new pair. Checks run in a fixed order and stop at the first failure.
type RenewalService struct {
	repos   repomanager.RepositoryManager
	tx      dbx.Transactor
	codec   *auth.Codec
	issuer  *TokenIssuer
	replay  ReplayTracker
	metrics *metrics.Recorder
	log     logging.Logger
	now     func() time.Time
}

type RenewalOption func(*RenewalService)

func WithReplayTracker(t ReplayTracker) RenewalOption {
	return func(s *RenewalService) { s.replay = t }
}

func WithRenewalMetrics(m *metrics.Recorder) RenewalOption {
	return func(s *RenewalService) { s.metrics = m }
}

func WithRenewalClock(now func() time.Time) RenewalOption {
	return func(s *RenewalService) { s.now = now }
}

func NewRenewalService(repos repomanager.RepositoryManager, tx dbx.Transactor, codec *auth.Codec, issuer *TokenIssuer, log logging.Logger, opts ...RenewalOption) *RenewalService {
	s := &RenewalService{
		repos:  repos,
		tx:     tx,
		codec:  codec,
		issuer: issuer,
		log:    log.With("module", "renewal"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Renew runs the renewal protocol. It never panics on bad input and never
// returns a nil Pair on success.
func (s *RenewalService) Renew(ctx context.Context, accessToken, refreshToken string) RenewalResult {
	res := s.renew(ctx, accessToken, refreshToken)

	s.metrics.Renewal(ctx, res.Failure.String())
	switch res.Failure {
	case FailureNone:
		s.log.Info(ctx, "token renewed", "user_id", res.UserID, "record_id", res.RecordID)
	case FailureInternal:
		s.log.Error(ctx, "renewal failed", "failure", res.Failure.String(), "record_id", res.RecordID, "error", res.Err)
	default:
		s.log.Warn(ctx, "renewal rejected", "failure", res.Failure.String(), "record_id", res.RecordID, "error", res.Err)
	}
	return res
}

func (s *RenewalService) renew(ctx context.Context, accessToken, refreshToken string) RenewalResult {
	// 1. signature
	decoded, err := s.codec.Decode(accessToken, auth.DecodeOptions{CheckExpiry: false})
	if err != nil {
		return RenewalResult{Failure: FailureInvalidToken, Err: err}
	}

	// 2. algorithm
	if !strings.EqualFold(decoded.Algorithm, s.codec.Algorithm()) {
		return RenewalResult{Failure: FailureInvalidToken, Err: fmt.Errorf("unexpected algorithm %q", decoded.Algorithm)}
	}

	// 3. access token must have expired
	if decoded.ExpiresAt.IsZero() {
		return RenewalResult{Failure: FailureInvalidToken, Err: errors.New("access token has no exp claim")}
	}
	if decoded.ExpiresAt.After(s.now().UTC()) {
		return RenewalResult{Failure: FailureNotExpired}
	}

	// 4. record lookup
	store := s.repos.RefreshTokens(s.tx.Conn())
	rec, err := store.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return RenewalResult{Failure: FailureNotFound}
		}
		return RenewalResult{Failure: classify(err), Err: err}
	}

	// 5. replay
	if rec.IsUsed {
		s.trackReplay(ctx, rec)
		return RenewalResult{Failure: FailureAlreadyUsed, UserID: rec.UserID, RecordID: rec.ID}
	}

	// 6. revoked
	if rec.IsRevoked {
		return RenewalResult{Failure: FailureRevoked, UserID: rec.UserID, RecordID: rec.ID}
	}

	// 7. pairing
	if decoded.Claims.ID != rec.JwtID {
		s.revokeMismatched(ctx, rec)
		return RenewalResult{Failure: FailureMismatch, UserID: rec.UserID, RecordID: rec.ID}
	}

	// 8-9. retire and reissue atomically where the store supports it
	var pair *models.TokenPair
	err = s.tx.WithinTx(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if err := s.repos.RefreshTokens(db).Retire(ctx, rec.ID); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return errRetireLost
			}
			return fmt.Errorf("retire: %w", err)
		}

		user, err := s.repos.Users(db).FindByID(ctx, rec.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errUnknownUser
			}
			return fmt.Errorf("find user: %w", err)
		}

		pair, err = s.issuer.IssueTx(ctx, user, db)
		return err
	})
	if err != nil {
		out := RenewalResult{Err: err, UserID: rec.UserID, RecordID: rec.ID}
		switch {
		case errors.Is(err, errRetireLost):
			out.Failure = FailureAlreadyUsed
		case errors.Is(err, errUnknownUser):
			out.Failure = FailureInvalidToken
		default:
			out.Failure = classify(err)
		}
		return out
	}

	// 10.
	return RenewalResult{Failure: FailureNone, Pair: pair, UserID: rec.UserID, RecordID: rec.ID}
}

func (s *RenewalService) trackReplay(ctx context.Context, rec *models.RefreshToken) {
	s.log.Warn(ctx, "spent refresh token presented again", "user_id", rec.UserID, "record_id", rec.ID)
	if s.replay == nil {
		return
	}
	n, err := s.replay.Track(ctx, rec.ID)
	if err != nil {
		s.log.Warn(ctx, "replay tracking failed", "record_id", rec.ID, "error", err)
		return
	}
	if n > 1 {
		s.log.Warn(ctx, "repeated refresh token replay", "record_id", rec.ID, "count", n)
	}
}

func (s *RenewalService) revokeMismatched(ctx context.Context, rec *models.RefreshToken) {
	err := s.repos.RefreshTokens(s.tx.Conn()).Revoke(ctx, rec.ID)
	if err != nil && !errors.Is(err, common.ErrConflict) {
		s.log.Warn(ctx, "revoking mismatched refresh token failed", "record_id", rec.ID, "error", err)
	}
}

// classify maps storage and context errors onto a failure kind.
func classify(err error) RenewalFailure {
	switch {
	case errors.Is(err, common.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return FailureUnavailable
	default:
		return FailureInternal
	}
}
