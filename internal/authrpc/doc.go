// Package authrpc defines the bookauth.AuthService gRPC contract: request
// and response messages, the service descriptor and a client stub.
//
// The schema lives in auth.proto and is registered at init as
// bookauth/auth.proto. Handlers and callers work with the plain Go structs
// in messages.go; on the wire they travel as protobuf messages through
// grpc's default codec, so any protobuf client can call the service.
package authrpc
