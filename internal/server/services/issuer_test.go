package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_CreatesBoundPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.accounts.SignUp(ctx, SignUpInput{Email: "reader@example.com", Password: "pw"})
	require.NoError(t, err)

	pair, err := env.issuer.Issue(ctx, u)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(pair.RefreshToken)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	d, err := env.codec.Decode(pair.AccessToken, auth.DecodeOptions{CheckExpiry: true})
	require.NoError(t, err)
	assert.Equal(t, "HS512", d.Algorithm)
	assert.Equal(t, "reader@example.com", d.Claims.Email)
	assert.Equal(t, []string{common.DefaultRole}, d.Claims.Roles)
	assert.NotEmpty(t, d.Claims.ID)
	assert.True(t, d.ExpiresAt.Equal(env.clock.Now().Add(testAccess)))

	rec := env.record(t, pair.RefreshToken)
	assert.Equal(t, d.Claims.ID, rec.JwtID)
	assert.Equal(t, u.ID, rec.UserID)
	assert.False(t, rec.IsUsed)
	assert.False(t, rec.IsRevoked)
	assert.True(t, rec.IssuedAt.Equal(env.clock.Now()))
	assert.True(t, rec.ExpiredAt.Equal(env.clock.Now().Add(testRefresh)))
}

func TestIssue_UserWithoutRoles(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.issuer.Issue(context.Background(), models.User{ID: "u-no-roles", Email: "x@example.com"})
	require.NoError(t, err)

	d, err := env.codec.Decode(pair.AccessToken, auth.DecodeOptions{})
	require.NoError(t, err)
	assert.Empty(t, d.Claims.Roles)
}

func TestIssue_EveryPairIsDistinct(t *testing.T) {
	env := newTestEnv(t)
	u := models.User{ID: "u1", Email: "a@b.c"}

	p1, err := env.issuer.Issue(context.Background(), u)
	require.NoError(t, err)
	p2, err := env.issuer.Issue(context.Background(), u)
	require.NoError(t, err)

	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
	assert.NotEqual(t, env.record(t, p1.RefreshToken).JwtID, env.record(t, p2.RefreshToken).JwtID)
}

func TestIssue_RetriesOnTokenCollision(t *testing.T) {
	env := newTestEnv(t)
	env.repos.r.addErrs = []error{common.ErrConflict, common.ErrConflict}

	pair, err := env.issuer.Issue(context.Background(), models.User{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestIssueTx_CollisionRetryUsesSavepoint(t *testing.T) {
	env := newTestEnv(t)
	env.repos.r.addErrs = []error{common.ErrConflict}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT issue_refresh$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT issue_refresh$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^SAVEPOINT issue_refresh$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^RELEASE SAVEPOINT issue_refresh$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	u := models.User{ID: "u1", Email: "a@b.c"}
	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := env.issuer.IssueTx(ctx, u, tx)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	env := newTestEnv(t)
	env.repos.r.addErrs = []error{common.ErrConflict, common.ErrConflict, common.ErrConflict}

	_, err := env.issuer.Issue(context.Background(), models.User{ID: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrConflict)
}

func TestIssue_RealCollisionRegenerates(t *testing.T) {
	env := newTestEnv(t)
	values := []string{"dup", "dup", "fresh"}
	env.issuer = NewTokenIssuer(env.repos, nil, env.codec,
		IssuerConfig{AccessTokenValidity: testAccess, RefreshTokenValidity: testRefresh},
		env.issuer.log, WithIssuerClock(env.clock.Now),
		withTokenSource(func() (string, error) {
			v := values[0]
			values = values[1:]
			return v, nil
		}))

	u := models.User{ID: "u1", Email: "a@b.c"}
	first, err := env.issuer.IssueTx(context.Background(), u, nil)
	require.NoError(t, err)
	assert.Equal(t, "dup", first.RefreshToken)

	second, err := env.issuer.IssueTx(context.Background(), u, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.RefreshToken)
}

func TestIssue_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repos.r.addErrs = []error{common.ErrUnavailable}

	_, err := env.issuer.Issue(context.Background(), models.User{ID: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}
