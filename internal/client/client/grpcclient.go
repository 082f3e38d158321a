package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      authrpc.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onTokens     func(context.Context, Tokens)

	// serializes renewals so a refresh token is redeemed at most once
	renewMu sync.Mutex
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	sent := s.Tokens().AccessToken
	err := invoker(withAccessToken(ctx, sent), method, req, reply, cc, opts...)

	if err == nil || method == authrpc.MethodRenew || !isTokenExpired(err) {
		return err
	}

	if rerr := s.renewIfStale(ctx, sent); rerr != nil {
		return rerr
	}

	// tokens renewed, retry once with the new access token
	return invoker(withAccessToken(ctx, s.Tokens().AccessToken), method, req, reply, cc, opts...)
}

// renewIfStale renews the session unless another request already replaced
// the access token stale.
func (s *GRPCClient) renewIfStale(ctx context.Context, stale string) error {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()

	current := s.Tokens()
	if current.AccessToken != stale {
		return nil
	}
	return s.renewLocked(ctx, current)
}

func (s *GRPCClient) renewLocked(ctx context.Context, current Tokens) error {
	if current.RefreshToken == "" {
		return ErrUnauthorized
	}

	resp, err := s.client.Renew(ctx, &authrpc.RenewRequest{
		AccessToken:  current.AccessToken,
		RefreshToken: current.RefreshToken,
	})
	if err != nil {
		return s.mapError(err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrSessionExpired, resp.Message)
	}

	s.setTokens(ctx, Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	return nil
}

func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = authrpc.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Tokens{AccessToken: s.accessToken, RefreshToken: s.refreshToken}
}

// SetTokens restores a saved session without notifying OnTokens.
func (s *GRPCClient) SetTokens(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = t.AccessToken, t.RefreshToken
}

func (s *GRPCClient) OnTokens(fn func(context.Context, Tokens)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokens = fn
}

func (s *GRPCClient) setTokens(ctx context.Context, t Tokens) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = t.AccessToken, t.RefreshToken
	fn := s.onTokens
	s.mu.Unlock()

	if fn != nil {
		fn(ctx, t)
	}
}

func (s *GRPCClient) SignUp(ctx context.Context, email, password, firstName, lastName string) error {

	req := &authrpc.SignUpRequest{Email: email, Password: password, FirstName: firstName, LastName: lastName}

	if _, err := s.client.SignUp(ctx, req); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *GRPCClient) SignIn(ctx context.Context, email, password string) error {

	resp, err := s.client.SignIn(ctx, &authrpc.SignInRequest{Email: email, Password: password})
	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(ctx, Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	return nil
}

// Renew exchanges the current pair for a new one. The server only accepts
// this once the access token has expired.
func (s *GRPCClient) Renew(ctx context.Context) error {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	return s.renewLocked(ctx, s.Tokens())
}

// Revoke logs out this session and forgets its tokens.
func (s *GRPCClient) Revoke(ctx context.Context) error {

	t := s.Tokens()
	if t.RefreshToken == "" {
		return ErrUnauthorized
	}

	if _, err := s.client.Revoke(ctx, &authrpc.RevokeRequest{RefreshToken: t.RefreshToken}); err != nil {
		return s.mapError(err)
	}

	s.setTokens(ctx, Tokens{})
	return nil
}

// RevokeAll logs out every session of the current user.
func (s *GRPCClient) RevokeAll(ctx context.Context) (int64, error) {

	resp, err := s.client.RevokeAll(ctx, &authrpc.RevokeAllRequest{})
	if err != nil {
		return 0, s.mapError(err)
	}

	s.setTokens(ctx, Tokens{})
	return resp.Revoked, nil
}

func (s *GRPCClient) Me(ctx context.Context) (*Profile, error) {

	resp, err := s.client.Me(ctx, &authrpc.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}

	return &Profile{Email: resp.Email, Roles: resp.Roles}, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := s.client.Ping(ctx, &authrpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

var _ Client = (*GRPCClient)(nil)
