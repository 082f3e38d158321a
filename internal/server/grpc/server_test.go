package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookauth/internal/server/services"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
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

// newStack builds in-memory account and renewal services sharing clock.
func newStack(clock *testClock) (*services.AccountService, *services.RenewalService) {
	repos := repomanager.NewInMemoryRepositoryManager(bcrypt.MinCost)
	tx := dbx.NopTransactor{}
	codec := auth.NewCodec(auth.NewSigningKey("grpc-secret", "bookauth", "bookstore"), auth.WithClock(clock.Now))
	log := logging.Nop{}

	issuer := services.NewTokenIssuer(repos, tx, codec,
		services.IssuerConfig{AccessTokenValidity: 20 * time.Minute, RefreshTokenValidity: time.Hour},
		log, services.WithIssuerClock(clock.Now))
	renewal := services.NewRenewalService(repos, tx, codec, issuer, log, services.WithRenewalClock(clock.Now))
	accounts := services.NewAccountService(repos, tx, codec, issuer, nil, log)
	return accounts, renewal
}

// dial serves s over an in-process listener and returns a client for it.
func dial(t *testing.T, s *GRPCServer) authrpc.AuthServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return authrpc.NewAuthServiceClient(conn)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, &fakeAccounts{}, &fakeRenewer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, &fakeAccounts{}, &fakeRenewer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
