package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/bookauth/internal/authrpc"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors that have no method-specific meaning.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrUnavailable):
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) SignUp(ctx context.Context, req *authrpc.SignUpRequest) (*authrpc.SignUpResponse, error) {

	user, err := s.accounts.SignUp(ctx, services.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, common.ErrAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, "email already registered")
		}
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return &authrpc.SignUpResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) SignIn(ctx context.Context, req *authrpc.SignInRequest) (*authrpc.SignInResponse, error) {

	tokens, err := s.accounts.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, s.toStatus(ctx, err)
	}

	return &authrpc.SignInResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// Renew returns policy failures in the response body. Transient faults
// become codes.Unavailable so clients can retry.
func (s *GRPCServer) Renew(ctx context.Context, req *authrpc.RenewRequest) (*authrpc.RenewResponse, error) {

	result := s.renewal.Renew(ctx, req.AccessToken, req.RefreshToken)

	switch result.Failure {
	case services.FailureNone:
		return &authrpc.RenewResponse{
			Success:      true,
			Message:      result.Reason(),
			AccessToken:  result.Pair.AccessToken,
			RefreshToken: result.Pair.RefreshToken,
		}, nil
	case services.FailureUnavailable:
		return nil, status.Error(codes.Unavailable, result.Reason())
	case services.FailureInternal:
		return nil, status.Error(codes.Internal, result.Reason())
	}

	return &authrpc.RenewResponse{Success: false, Message: result.Reason()}, nil
}

func (s *GRPCServer) Revoke(ctx context.Context, req *authrpc.RevokeRequest) (*authrpc.RevokeResponse, error) {

	if err := s.accounts.Revoke(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "refresh token doesn't exist")
		}
		return nil, s.toStatus(ctx, err)
	}

	return &authrpc.RevokeResponse{}, nil
}

func (s *GRPCServer) RevokeAll(ctx context.Context, _ *authrpc.RevokeAllRequest) (*authrpc.RevokeAllResponse, error) {

	p, ok := principalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, "missing principal")
	}

	n, err := s.accounts.RevokeAll(ctx, p.accessToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return nil, s.toStatus(ctx, err)
	}

	return &authrpc.RevokeAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *authrpc.MeRequest) (*authrpc.MeResponse, error) {

	p, ok := principalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, "missing principal")
	}

	return &authrpc.MeResponse{Email: p.claims.Email, Roles: p.claims.Roles}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *authrpc.PingRequest) (*authrpc.PingResponse, error) {

	return &authrpc.PingResponse{Status: "OK"}, nil

}
