package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret"
	testAccess   = 20 * time.Minute
	testRefresh  = time.Hour
	testPassword = "correct horse"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRefreshRepo wraps the in-memory store and lets tests inject errors.
type fakeRefreshRepo struct {
	*refreshtokens.InMemoryRepository
	getErr    error
	retireErr error
	addErrs   []error
}

func (f *fakeRefreshRepo) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.InMemoryRepository.GetByToken(ctx, token)
}

func (f *fakeRefreshRepo) Retire(ctx context.Context, id string) error {
	if f.retireErr != nil {
		return f.retireErr
	}
	return f.InMemoryRepository.Retire(ctx, id)
}

func (f *fakeRefreshRepo) Add(ctx context.Context, t *models.RefreshToken) error {
	if len(f.addErrs) > 0 {
		err := f.addErrs[0]
		f.addErrs = f.addErrs[1:]
		if err != nil {
			return err
		}
	}
	return f.InMemoryRepository.Add(ctx, t)
}

// fakeUsersRepo wraps the in-memory user store and lets tests inject errors.
type fakeUsersRepo struct {
	*users.InMemoryRepository
	findByIDErr error
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (models.User, error) {
	if f.findByIDErr != nil {
		return models.User{}, f.findByIDErr
	}
	return f.InMemoryRepository.FindByID(ctx, id)
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

type fakeReplayTracker struct {
	mu   sync.Mutex
	seen map[string]int64
	err  error
}

func (f *fakeReplayTracker) Track(_ context.Context, recordID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.seen == nil {
		f.seen = map[string]int64{}
	}
	f.seen[recordID]++
	return f.seen[recordID], nil
}

type testEnv struct {
	clock    *testClock
	repos    *fakeRepoManager
	codec    *auth.Codec
	issuer   *TokenIssuer
	renewal  *RenewalService
	accounts *AccountService
	replay   *fakeReplayTracker
}

func newTestEnvWithTx(t *testing.T, tx dbx.Transactor) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	repos := &fakeRepoManager{
		u: &fakeUsersRepo{InMemoryRepository: users.NewInMemoryRepository(bcrypt.MinCost)},
		r: &fakeRefreshRepo{InMemoryRepository: refreshtokens.NewInMemoryRepository()},
	}
	codec := auth.NewCodec(auth.NewSigningKey(testSecret, "bookauth", "bookstore"), auth.WithClock(clock.Now))
	log := logging.Nop{}

	issuer := NewTokenIssuer(repos, tx, codec,
		IssuerConfig{AccessTokenValidity: testAccess, RefreshTokenValidity: testRefresh},
		log, WithIssuerClock(clock.Now))
	replay := &fakeReplayTracker{}
	renewal := NewRenewalService(repos, tx, codec, issuer, log,
		WithRenewalClock(clock.Now), WithReplayTracker(replay))
	accounts := NewAccountService(repos, tx, codec, issuer, nil, log)

	return &testEnv{
		clock:    clock,
		repos:    repos,
		codec:    codec,
		issuer:   issuer,
		renewal:  renewal,
		accounts: accounts,
		replay:   replay,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithTx(t, dbx.NopTransactor{})
}

// signIn registers email (once) and returns a fresh token pair for it.
func (e *testEnv) signIn(t *testing.T, email string) (*models.TokenPair, models.User) {
	t.Helper()
	ctx := context.Background()

	u, err := e.repos.u.FindByEmail(ctx, email)
	if err != nil {
		u, err = e.accounts.SignUp(ctx, SignUpInput{Email: email, Password: testPassword})
		require.NoError(t, err)
	}
	pair, err := e.accounts.SignIn(ctx, email, testPassword)
	require.NoError(t, err)
	return pair, u
}

func (e *testEnv) record(t *testing.T, token string) *models.RefreshToken {
	t.Helper()
	rec, err := e.repos.r.InMemoryRepository.GetByToken(context.Background(), token)
	require.NoError(t, err)
	return rec
}
