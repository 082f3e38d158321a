package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/ratelimit"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type stubLimiter struct {
	err  error
	keys []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) error {
	l.keys = append(l.keys, key)
	return l.err
}

func TestRateLimit_SignInOverBudgetIsResourceExhausted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	const limit = 3
	clock := &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	accounts, renewal := newStack(clock)
	c := dial(t, NewGRPCServer("bufnet", logging.Nop{}, accounts, renewal,
		WithRateLimiter(ratelimit.New(client, limit, time.Minute))))
	ctx := context.Background()

	if _, err := c.SignUp(ctx, &authrpc.SignUpRequest{Email: "reader@example.com", Password: "pw"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	for i := 0; i < limit; i++ {
		if _, err := c.SignIn(ctx, &authrpc.SignInRequest{Email: "reader@example.com", Password: "pw"}); err != nil {
			t.Fatalf("SignIn %d: %v", i+1, err)
		}
	}

	_, err := c.SignIn(ctx, &authrpc.SignInRequest{Email: "reader@example.com", Password: "pw"})
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("SignIn %d: want ResourceExhausted, got %v", limit+1, err)
	}

	// renew has its own budget, unthrottled methods have none
	if _, err := c.Renew(ctx, &authrpc.RenewRequest{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if _, err := c.Ping(ctx, &authrpc.PingRequest{}); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if _, err := c.SignIn(ctx, &authrpc.SignInRequest{Email: "reader@example.com", Password: "pw"}); err != nil {
		t.Fatalf("SignIn after window: %v", err)
	}
}

func TestRateLimit_FailsOpenWhenLimiterUnavailable(t *testing.T) {
	l := &stubLimiter{err: fmt.Errorf("%w: connection refused", common.ErrUnavailable)}
	s := NewGRPCServer("", logging.Nop{}, &fakeAccounts{}, &fakeRenewer{}, WithRateLimiter(l))
	info := &grpc.UnaryServerInfo{FullMethod: authrpc.MethodRenew}

	called := false
	h := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}

	resp, err := s.rateLimitInterceptor(context.Background(), nil, info, h)
	if err != nil || !called || resp != "ok" {
		t.Fatalf("want pass-through, got resp=%v err=%v called=%v", resp, err, called)
	}
}

func TestRateLimit_KeyAndScope(t *testing.T) {
	l := &stubLimiter{}
	s := NewGRPCServer("", logging.Nop{}, &fakeAccounts{}, &fakeRenewer{}, WithRateLimiter(l))
	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 52311},
	})

	for _, m := range []string{authrpc.MethodSignIn, authrpc.MethodRenew, authrpc.MethodSignUp, authrpc.MethodMe} {
		if _, err := s.rateLimitInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: m}, h); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}

	want := []string{"10.0.0.7:" + authrpc.MethodSignIn, "10.0.0.7:" + authrpc.MethodRenew}
	if len(l.keys) != len(want) || l.keys[0] != want[0] || l.keys[1] != want[1] {
		t.Fatalf("keys = %v, want %v", l.keys, want)
	}
}

func TestRateLimit_Limited(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, &fakeAccounts{}, &fakeRenewer{}, WithRateLimiter(&stubLimiter{err: ratelimit.ErrRateLimited}))
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called")
		return nil, nil
	}

	_, err := s.rateLimitInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: authrpc.MethodSignIn}, h)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("want ResourceExhausted, got %v", err)
	}
}
