package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// principal is the authenticated caller of a protected method.
type principal struct {
	accessToken string
	claims      *auth.Claims
}

var protectedMethods = map[string]bool{
	authrpc.MethodMe:        true,
	authrpc.MethodRevokeAll: true,
}

var throttledMethods = map[string]bool{
	authrpc.MethodSignIn: true,
	authrpc.MethodRenew:  true,
}

func principalFromContext(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey).(principal)
	return p, ok
}

func accessTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AccessTokenHeaderName)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// accessTokenInterceptor authenticates protected methods. An expired token
// is reported with the common.ErrTokenExpired message so clients know to
// renew.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := accessTokenFromMetadata(ctx)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.accounts.Authenticate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, principalKey, principal{accessToken: accessToken, claims: claims})
	return handler(ctx, req)
}

// peerHost returns the caller's host without the port, or "" when unknown.
func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// rateLimitInterceptor counts SignIn and Renew calls per peer host and
// method. Limiter errors other than ratelimit.ErrRateLimited let the call
// through.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if s.limiter == nil || !throttledMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	err := s.limiter.Allow(ctx, peerHost(ctx)+":"+info.FullMethod)
	switch {
	case err == nil:
	case errors.Is(err, ratelimit.ErrRateLimited):
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	default:
		s.logger.Warn(ctx, "rate limiter unavailable", "method", info.FullMethod, "error", err.Error())
	}
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}
