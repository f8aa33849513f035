// Package jwtgrpc adapts the authorization gate to gRPC servers.
//
//	interceptor, err := jwtgrpc.New(gate.Core(),
//	    jwtgrpc.WithMethodPermissions(map[string]string{
//	        "/messages.v1.Messages/List":   "read:messages",
//	        "/messages.v1.Messages/Create": "write:messages",
//	    }),
//	    jwtgrpc.WithExcludedMethods("/grpc.health.v1.Health/Check"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := grpc.NewServer(
//	    grpc.UnaryInterceptor(interceptor.UnaryServerInterceptor()),
//	    grpc.StreamInterceptor(interceptor.StreamServerInterceptor()),
//	)
package jwtgrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Interceptor authorizes gRPC calls. The required permission of a call is
// looked up by its full method name.
type Interceptor struct {
	core              *core.Core
	tokenExtractor    TokenExtractor
	exclusionChecker  func(method string) bool
	permissions       map[string]string
	defaultPermission string
	logger            core.Logger
}

// New creates an Interceptor backed by c.
func New(c *core.Core, opts ...Option) (*Interceptor, error) {
	if c == nil {
		return nil, errors.New("core cannot be nil")
	}

	i := &Interceptor{
		core:           c,
		tokenExtractor: MetadataTokenExtractor,
		permissions:    map[string]string{},
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return i, nil
}

// permissionFor returns the permission required by method.
func (i *Interceptor) permissionFor(method string) string {
	if p, ok := i.permissions[method]; ok {
		return p
	}
	return i.defaultPermission
}

// authorize returns ctx carrying the claim set, or a gRPC status error.
func (i *Interceptor) authorize(ctx context.Context, method string) (context.Context, error) {
	if i.exclusionChecker != nil && i.exclusionChecker(method) {
		if i.logger != nil {
			i.logger.Debug("skipping authorization for excluded method", "method", method)
		}
		return ctx, nil
	}

	permission := i.permissionFor(method)

	token, err := i.tokenExtractor(ctx)
	if err != nil {
		return nil, ToStatus(i.core.Reject(ctx, permission, err))
	}

	claims, err := i.core.Authorize(ctx, token, permission)
	if err != nil {
		return nil, ToStatus(err)
	}

	return core.SetClaims(ctx, claims), nil
}

// UnaryServerInterceptor returns a gRPC unary server interceptor.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		authCtx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authCtx, err := i.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: authCtx})
	}
}

// wrappedServerStream wraps a grpc.ServerStream to override the context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// GetClaims retrieves the claim set of an authorized call.
func GetClaims(ctx context.Context) (*core.ClaimSet, error) {
	return core.GetClaims(ctx)
}
