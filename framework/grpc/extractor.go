package jwtgrpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/gatekeep/go-jwt-gate/core"
)

// TokenExtractor extracts a token from the incoming call context. It returns
// an empty token, not an error, when no credentials were sent.
type TokenExtractor func(ctx context.Context) (string, error)

// MetadataTokenExtractor extracts the bearer token from the "authorization"
// metadata entry, parsed like an HTTP Authorization header.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil // No metadata, so no token.
	}

	values := md.Get("authorization")
	if len(values) == 0 || values[0] == "" {
		return "", nil
	}
	if len(values) > 1 {
		return "", core.NewAuthError(core.KindMalformedAuthHeader, nil)
	}

	return core.ParseAuthorizationHeader(values[0])
}

// MetadataFieldTokenExtractor extracts a raw token from the given metadata
// field.
func MetadataFieldTokenExtractor(field string) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return "", nil
		}

		values := md.Get(field)
		if len(values) == 0 {
			return "", nil
		}
		return values[0], nil
	}
}

// MultiTokenExtractor runs extractors in order and returns the first
// non-empty token.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		for _, ex := range extractors {
			token, err := ex(ctx)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
