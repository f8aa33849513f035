package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Verifier checks a token's signature and registered claims and returns the
// verified claim set.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*ClaimSet, error)
}

// RevocationChecker reports whether an authentic token has been revoked.
// It is only consulted after the token has been verified.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string, claims *ClaimSet) (bool, error)
}

// Logger defines an optional logging interface for the core.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metrics records authorization outcomes.
type Metrics interface {
	IncAuthorized(permission string)
	IncRejected(kind Kind)
	ObserveLatency(d time.Duration)
}

// Core is the framework-agnostic authorization gate. Transport adapters
// extract the token and hand it to Authorize.
type Core struct {
	verifier   Verifier
	revocation RevocationChecker
	logger     Logger
	metrics    Metrics
	tracer     trace.Tracer
}

// CheckAuthorization parses an Authorization header value and authorizes the
// bearer token it carries.
func (c *Core) CheckAuthorization(ctx context.Context, header, requiredPermission string) (*ClaimSet, error) {
	token, err := ParseAuthorizationHeader(header)
	if err != nil {
		return nil, c.Reject(ctx, requiredPermission, err)
	}
	return c.Authorize(ctx, token, requiredPermission)
}

// Reject records a failure that happened before Authorize could run, such as
// a token extractor error, and returns it as an *AuthError. Errors without a
// kind are reported as a malformed Authorization header.
func (c *Core) Reject(ctx context.Context, requiredPermission string, err error) error {
	if KindOf(err) == "" {
		err = NewAuthError(KindMalformedAuthHeader, err)
	}
	c.reject(ctx, requiredPermission, err)
	return err
}

// Authorize runs verification, the revocation check and permission
// enforcement, in that order, stopping at the first failure. An empty token
// fails with ErrMissingAuthHeader.
func (c *Core) Authorize(ctx context.Context, token, requiredPermission string) (*ClaimSet, error) {
	ctx, span := c.tracer.Start(ctx, "jwtgate.authorize",
		trace.WithAttributes(attribute.String("jwtgate.permission", requiredPermission)))
	defer span.End()

	start := time.Now()
	claims, err := c.authorize(ctx, token, requiredPermission)
	duration := time.Since(start)
	c.metrics.ObserveLatency(duration)

	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("jwtgate.outcome", string(kind)))
		span.SetStatus(codes.Error, string(kind))
		c.reject(ctx, requiredPermission, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("jwtgate.outcome", "authorized"))
	c.metrics.IncAuthorized(requiredPermission)
	if c.logger != nil {
		c.logger.Debug("authorization granted",
			"subject", claims.Subject,
			"permission", requiredPermission,
			"duration", duration)
	}

	return claims, nil
}

func (c *Core) authorize(ctx context.Context, token, requiredPermission string) (*ClaimSet, error) {
	if token == "" {
		return nil, NewAuthError(KindMissingAuthHeader, nil)
	}

	claims, err := c.verifier.VerifyToken(ctx, token)
	if err != nil {
		if KindOf(err) == "" {
			err = NewAuthError(KindTokenUnparseable, err)
		}
		return nil, err
	}
	if claims == nil {
		return nil, NewAuthError(KindTokenUnparseable, errors.New("verifier returned no claims"))
	}

	if c.revocation != nil {
		revoked, err := c.revocation.IsRevoked(ctx, token, claims)
		if err != nil {
			return nil, NewAuthError(KindRevocationUnavailable, err)
		}
		if revoked {
			return nil, NewAuthError(KindTokenRevoked, nil)
		}
	}

	if err := EnforcePermission(requiredPermission, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// reject records a failed check. Header parsing failures reach this without
// going through Authorize, so they are counted here too.
func (c *Core) reject(_ context.Context, requiredPermission string, err error) {
	kind := KindOf(err)
	c.metrics.IncRejected(kind)
	if c.logger == nil {
		return
	}
	switch kind.StatusCode() {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		c.logger.Error("authorization failed", "kind", kind, "permission", requiredPermission, "error", err)
	default:
		c.logger.Warn("authorization rejected", "kind", kind, "permission", requiredPermission, "error", err)
	}
}

type noopMetrics struct{}

func (noopMetrics) IncAuthorized(string)         {}
func (noopMetrics) IncRejected(Kind)             {}
func (noopMetrics) ObserveLatency(time.Duration) {}
