package jwtgrpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/gatekeep/go-jwt-gate/core"
)

const testMethod = "/test.service/TestMethod"

type stubVerifier struct {
	tokens map[string]*core.ClaimSet
}

func (s *stubVerifier) VerifyToken(_ context.Context, token string) (*core.ClaimSet, error) {
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, core.NewAuthError(core.KindSignatureInvalid, nil)
}

func newCore(t *testing.T, opts ...core.Option) *core.Core {
	t.Helper()
	opts = append([]core.Option{core.WithVerifier(&stubVerifier{tokens: map[string]*core.ClaimSet{
		"reader": {Subject: "user-1", Permissions: []string{"read:messages"}},
		"bare":   {Subject: "user-2"},
	}})}, opts...)
	c, err := core.New(opts...)
	require.NoError(t, err)
	return c
}

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func TestUnaryInterceptor(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		options    []Option
		method     string
		wantCode   codes.Code
		wantReason core.Kind
		wantClaims bool
	}{
		{
			name:       "valid token",
			ctx:        incoming("authorization", "Bearer reader"),
			wantCode:   codes.OK,
			wantClaims: true,
		},
		{
			name:       "no metadata",
			ctx:        context.Background(),
			wantCode:   codes.Unauthenticated,
			wantReason: core.KindMissingAuthHeader,
		},
		{
			name:       "unsupported scheme",
			ctx:        incoming("authorization", "Basic abc"),
			wantCode:   codes.Unauthenticated,
			wantReason: core.KindUnsupportedScheme,
		},
		{
			name:       "duplicate authorization entries",
			ctx:        incoming("authorization", "Bearer reader", "authorization", "Bearer reader"),
			wantCode:   codes.Unauthenticated,
			wantReason: core.KindMalformedAuthHeader,
		},
		{
			name:       "invalid signature",
			ctx:        incoming("authorization", "Bearer forged"),
			wantCode:   codes.Unauthenticated,
			wantReason: core.KindSignatureInvalid,
		},
		{
			name:       "method permission granted",
			ctx:        incoming("authorization", "Bearer reader"),
			options:    []Option{WithMethodPermissions(map[string]string{testMethod: "read:messages"})},
			wantCode:   codes.OK,
			wantClaims: true,
		},
		{
			name:       "method permission denied",
			ctx:        incoming("authorization", "Bearer reader"),
			options:    []Option{WithMethodPermissions(map[string]string{testMethod: "write:messages"})},
			wantCode:   codes.PermissionDenied,
			wantReason: core.KindPermissionDenied,
		},
		{
			name:       "default permission without permissions claim",
			ctx:        incoming("authorization", "Bearer bare"),
			options:    []Option{WithDefaultPermission("read:messages")},
			wantCode:   codes.InvalidArgument,
			wantReason: core.KindPermissionsClaimMissing,
		},
		{
			name:     "excluded method",
			ctx:      context.Background(),
			method:   "/test.service/ExcludedMethod",
			options:  []Option{WithExcludedMethods("/test.service/ExcludedMethod")},
			wantCode: codes.OK,
		},
		{
			name: "custom exclusion checker",
			ctx:  context.Background(),
			options: []Option{WithExclusionChecker(func(method string) bool {
				return method == testMethod
			})},
			wantCode: codes.OK,
		},
		{
			name:       "raw token field",
			ctx:        incoming("x-access-token", "reader"),
			options:    []Option{WithTokenExtractor(MetadataFieldTokenExtractor("x-access-token"))},
			wantCode:   codes.OK,
			wantClaims: true,
		},
		{
			name: "extractor error",
			ctx:  context.Background(),
			options: []Option{WithTokenExtractor(func(context.Context) (string, error) {
				return "", errors.New("bad metadata")
			})},
			wantCode:   codes.Unauthenticated,
			wantReason: core.KindMalformedAuthHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor, err := New(newCore(t), tt.options...)
			require.NoError(t, err)

			method := testMethod
			if tt.method != "" {
				method = tt.method
			}

			var handlerCalled bool
			var resultCtx context.Context
			handler := func(ctx context.Context, req any) (any, error) {
				handlerCalled = true
				resultCtx = ctx
				return "ok", nil
			}

			resp, err := interceptor.UnaryServerInterceptor()(tt.ctx, "req", &grpc.UnaryServerInfo{FullMethod: method}, handler)

			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode != codes.OK {
				assert.False(t, handlerCalled, "handler must not run")
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantReason, Reason(err))
				return
			}
			require.True(t, handlerCalled)
			assert.Equal(t, "ok", resp)

			claims, err := GetClaims(resultCtx)
			if tt.wantClaims {
				require.NoError(t, err)
				assert.NotEmpty(t, claims.Subject)
			} else {
				assert.ErrorIs(t, err, core.ErrClaimsNotFound)
			}
		})
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	interceptor, err := New(newCore(t), WithDefaultPermission("read:messages"))
	require.NoError(t, err)
	info := &grpc.StreamServerInfo{FullMethod: testMethod, IsServerStream: true}

	t.Run("authorized stream sees claims", func(t *testing.T) {
		var subject string
		err := interceptor.StreamServerInterceptor()(nil, &fakeServerStream{ctx: incoming("authorization", "Bearer reader")}, info,
			func(_ any, ss grpc.ServerStream) error {
				claims, err := GetClaims(ss.Context())
				if err != nil {
					return err
				}
				subject = claims.Subject
				return nil
			})

		require.NoError(t, err)
		assert.Equal(t, "user-1", subject)
	})

	t.Run("rejected stream never reaches the handler", func(t *testing.T) {
		called := false
		err := interceptor.StreamServerInterceptor()(nil, &fakeServerStream{ctx: context.Background()}, info,
			func(any, grpc.ServerStream) error {
				called = true
				return nil
			})

		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.False(t, called)
	})
}

func TestToStatus(t *testing.T) {
	testCases := map[core.Kind]codes.Code{
		core.KindMissingAuthHeader:       codes.Unauthenticated,
		core.KindTokenRevoked:            codes.Unauthenticated,
		core.KindTokenUnparseable:        codes.InvalidArgument,
		core.KindKeyNotFound:             codes.InvalidArgument,
		core.KindPermissionDenied:        codes.PermissionDenied,
		core.KindKeySetUnavailable:       codes.Unavailable,
		core.KindRevocationUnavailable:   codes.Unavailable,
		core.KindPermissionsClaimMissing: codes.InvalidArgument,
	}
	for kind, want := range testCases {
		t.Run(string(kind), func(t *testing.T) {
			err := ToStatus(core.NewAuthError(kind, errors.New("internal detail")))

			st := status.Convert(err)
			assert.Equal(t, want, st.Code())
			assert.Equal(t, kind.Message(), st.Message())
			assert.NotContains(t, st.Message(), "internal detail")
			assert.Equal(t, kind, Reason(err))
		})
	}

	t.Run("plain errors are internal", func(t *testing.T) {
		err := ToStatus(errors.New("boom"))
		assert.Equal(t, codes.Internal, status.Code(err))
		assert.Empty(t, Reason(err))
	})
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorContains(t, err, "core cannot be nil")

	c := newCore(t)
	for name, opt := range map[string]Option{
		"token extractor cannot be nil":         WithTokenExtractor(nil),
		"excluded methods list cannot be empty": WithExcludedMethods(),
		"exclusion checker cannot be nil":       WithExclusionChecker(nil),
		"logger cannot be nil":                  WithLogger(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(c, opt)
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestInterceptor_OverTheWire(t *testing.T) {
	listener := bufconn.Listen(1 << 20)
	interceptor, err := New(newCore(t),
		WithMethodPermissions(map[string]string{healthpb.Health_Check_FullMethodName: "read:messages"}),
		WithExcludedMethods(healthpb.Health_Watch_FullMethodName),
	)
	require.NoError(t, err)

	srv := grpc.NewServer(
		grpc.UnaryInterceptor(interceptor.UnaryServerInterceptor()),
		grpc.StreamInterceptor(interceptor.StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	t.Run("authorized", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer reader")
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Equal(t, core.KindMissingAuthHeader, Reason(err))
	})

	t.Run("excluded stream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		resp, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})
}
