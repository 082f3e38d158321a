package authrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "bookauth.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodSignUp    = "/" + ServiceName + "/SignUp"
	MethodSignIn    = "/" + ServiceName + "/SignIn"
	MethodRenew     = "/" + ServiceName + "/Renew"
	MethodRevoke    = "/" + ServiceName + "/Revoke"
	MethodRevokeAll = "/" + ServiceName + "/RevokeAll"
	MethodMe        = "/" + ServiceName + "/Me"
	MethodPing      = "/" + ServiceName + "/Ping"
)

// AuthServiceServer is implemented by the server transport.
type AuthServiceServer interface {
	SignUp(context.Context, *SignUpRequest) (*SignUpResponse, error)
	SignIn(context.Context, *SignInRequest) (*SignInResponse, error)
	Renew(context.Context, *RenewRequest) (*RenewResponse, error)
	Revoke(context.Context, *RevokeRequest) (*RevokeResponse, error)
	RevokeAll(context.Context, *RevokeAllRequest) (*RevokeAllResponse, error)
	Me(context.Context, *MeRequest) (*MeResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to grpc.MethodDesc's handler signature.
// Interceptors see *Req; the wire carries the proto message of the same name.
func unary[Req any, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		wire, err := newMessage[Req]()
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		if err := dec(wire); err != nil {
			return nil, err
		}
		in := new(Req)
		if err := fromProto(wire, in); err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}

		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(AuthServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			out, err := toProto(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: unary(MethodSignUp, AuthServiceServer.SignUp)},
		{MethodName: "SignIn", Handler: unary(MethodSignIn, AuthServiceServer.SignIn)},
		{MethodName: "Renew", Handler: unary(MethodRenew, AuthServiceServer.Renew)},
		{MethodName: "Revoke", Handler: unary(MethodRevoke, AuthServiceServer.Revoke)},
		{MethodName: "RevokeAll", Handler: unary(MethodRevokeAll, AuthServiceServer.RevokeAll)},
		{MethodName: "Me", Handler: unary(MethodMe, AuthServiceServer.Me)},
		{MethodName: "Ping", Handler: unary(MethodPing, AuthServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ProtoFile,
}
