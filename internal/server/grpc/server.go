// Package grpc exposes the account and renewal services as the
// bookauth.AuthService gRPC service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/services"
	"google.golang.org/grpc"
)

// Accounts is the subset of services.AccountService the transport uses.
type Accounts interface {
	SignUp(ctx context.Context, in services.SignUpInput) (models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, accessToken string) (int64, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// RateLimiter throttles SignIn and Renew per peer.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// Renewer exchanges an expired access token and a refresh token for a new pair.
type Renewer interface {
	Renew(ctx context.Context, accessToken, refreshToken string) services.RenewalResult
}

type GRPCServer struct {
	address  string
	accounts Accounts
	renewal  Renewer
	limiter  RateLimiter
	logger   logging.Logger
}

type Option func(*GRPCServer)

// WithRateLimiter throttles SignIn and Renew. A nil limiter disables it.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *GRPCServer) { s.limiter = l }
}

func NewGRPCServer(a string, l logging.Logger, accounts Accounts, renewal Renewer, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		accounts: accounts,
		renewal:  renewal,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.rateLimitInterceptor, s.accessTokenInterceptor))
	authrpc.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
