package jwtgate

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Gate protects net/http handlers with bearer-token authorization.
type Gate struct {
	core                *core.Core
	errorHandler        ErrorHandler
	tokenExtractor      TokenExtractor
	validateOnOptions   bool
	exclusionURLHandler ExclusionURLHandler
	logger              core.Logger

	// Used during construction only.
	verifier   core.Verifier
	revocation core.RevocationChecker
	metrics    core.Metrics
	tracer     trace.Tracer
}

// ExclusionURLHandler is a function that takes in a http.Request and returns
// true if the request should pass through the gate unchecked.
type ExclusionURLHandler func(r *http.Request) bool

// ProtectedFunc is an operation that runs only for authorized requests. It
// receives the verified claim set as its first argument. Requests the gate
// lets through unchecked (excluded URLs, OPTIONS without
// WithValidateOnOptions) pass nil claims, so a handler mounted on such
// routes must nil-check claims before use.
type ProtectedFunc func(claims *core.ClaimSet, w http.ResponseWriter, r *http.Request)

// New constructs a Gate with the supplied options. WithVerifier is required.
//
// Example:
//
//	gate, err := jwtgate.New(
//	    jwtgate.WithVerifier(v),
//	    jwtgate.WithRevocationChecker(revocation.NewList()),
//	)
//	if err != nil {
//	    log.Fatalf("failed to create gate: %v", err)
//	}
//
//	mux.Handle("/api/messages", gate.Require("read:messages")(messagesHandler))
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		validateOnOptions: true,
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if g.verifier == nil {
		return nil, fmt.Errorf("invalid gate configuration: %w", ErrVerifierNil)
	}

	g.applyDefaults()

	if err := g.createCore(); err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	return g, nil
}

func (g *Gate) createCore() error {
	coreOpts := []core.Option{core.WithVerifier(g.verifier)}
	if g.revocation != nil {
		coreOpts = append(coreOpts, core.WithRevocationChecker(g.revocation))
	}
	if g.logger != nil {
		coreOpts = append(coreOpts, core.WithLogger(g.logger))
	}
	if g.metrics != nil {
		coreOpts = append(coreOpts, core.WithMetrics(g.metrics))
	}
	if g.tracer != nil {
		coreOpts = append(coreOpts, core.WithTracer(g.tracer))
	}

	c, err := core.New(coreOpts...)
	if err != nil {
		return err
	}
	g.core = c
	return nil
}

func (g *Gate) applyDefaults() {
	if g.errorHandler == nil {
		g.errorHandler = DefaultErrorHandler
	}
	if g.tokenExtractor == nil {
		g.tokenExtractor = AuthHeaderTokenExtractor
	}
}

// Core returns the transport-independent gate, for sharing one configuration
// with the gin, echo and gRPC adapters.
func (g *Gate) Core() *core.Core {
	return g.core
}

// Authorize extracts the token from r and runs the full check for
// permission. An empty permission only requires a valid, unrevoked token.
func (g *Gate) Authorize(r *http.Request, permission string) (*core.ClaimSet, error) {
	if g.logger != nil {
		g.logger.Debug("extracting token from request",
			"method", r.Method,
			"path", r.URL.Path)
	}

	token, err := g.tokenExtractor(r)
	if err != nil {
		return nil, g.core.Reject(r.Context(), permission, err)
	}

	return g.core.Authorize(r.Context(), token, permission)
}

// Require returns middleware that lets a request through to next only when
// it carries a token granting permission. The claim set is stored in the
// request context; retrieve it with GetClaims.
func (g *Gate) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Protect(permission, func(claims *core.ClaimSet, w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}

// Protect wraps fn so that it only runs for authorized requests. Excluded
// URLs and, when configured, OPTIONS requests reach fn with nil claims.
func (g *Gate) Protect(permission string, fn ProtectedFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.skip(r) {
			fn(nil, w, r)
			return
		}

		claims, err := g.Authorize(r, permission)
		if err != nil {
			g.errorHandler(w, r, err)
			return
		}

		fn(claims, w, r.WithContext(core.SetClaims(r.Context(), claims)))
	})
}

func (g *Gate) skip(r *http.Request) bool {
	if g.exclusionURLHandler != nil && g.exclusionURLHandler(r) {
		if g.logger != nil {
			g.logger.Debug("skipping authorization for excluded URL",
				"method", r.Method,
				"path", r.URL.Path)
		}
		return true
	}
	if !g.validateOnOptions && r.Method == http.MethodOptions {
		if g.logger != nil {
			g.logger.Debug("skipping authorization for OPTIONS request")
		}
		return true
	}
	return false
}

// GetClaims retrieves the claim set stored by the gate.
//
// Example:
//
//	claims, err := jwtgate.GetClaims(r.Context())
//	if err != nil {
//	    http.Error(w, "failed to get claims", http.StatusInternalServerError)
//	    return
//	}
//	fmt.Println(claims.Subject)
func GetClaims(ctx context.Context) (*core.ClaimSet, error) {
	return core.GetClaims(ctx)
}

// MustGetClaims retrieves the claim set or panics. Use only behind Require.
func MustGetClaims(ctx context.Context) *core.ClaimSet {
	claims, err := core.GetClaims(ctx)
	if err != nil {
		panic(err)
	}
	return claims
}

// HasClaims checks if claims exist in the context.
func HasClaims(ctx context.Context) bool {
	return core.HasClaims(ctx)
}
