package jwtgate

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Option configures the Gate.
// Returns error for validation failures.
type Option func(*Gate) error

// WithVerifier sets the token verifier (REQUIRED). *validator.Validator
// satisfies core.Verifier.
//
// Example:
//
//	keys, err := jwks.New(jwks.WithIssuerDomain("tenant.example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, err := validator.New(
//	    validator.WithKeyResolver(keys),
//	    validator.WithIssuerDomain("tenant.example.com"),
//	    validator.WithAudience("https://api.example.com"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gate, err := jwtgate.New(jwtgate.WithVerifier(v))
func WithVerifier(v core.Verifier) Option {
	return func(g *Gate) error {
		if v == nil {
			return ErrVerifierNil
		}
		g.verifier = v
		return nil
	}
}

// WithRevocationChecker sets the list consulted after a token verifies.
//
// Default: no token is revoked
func WithRevocationChecker(r core.RevocationChecker) Option {
	return func(g *Gate) error {
		if r == nil {
			return ErrRevocationCheckerNil
		}
		g.revocation = r
		return nil
	}
}

// WithValidateOnOptions sets whether OPTIONS requests are authorized.
//
// Default: true (OPTIONS requests are authorized)
func WithValidateOnOptions(value bool) Option {
	return func(g *Gate) error {
		g.validateOnOptions = value
		return nil
	}
}

// WithErrorHandler sets the handler called when a request is rejected.
// See the ErrorHandler type for more information.
//
// Default: DefaultErrorHandler
func WithErrorHandler(h ErrorHandler) Option {
	return func(g *Gate) error {
		if h == nil {
			return ErrErrorHandlerNil
		}
		g.errorHandler = h
		return nil
	}
}

// WithTokenExtractor sets the function to extract the token from the request.
//
// Default: AuthHeaderTokenExtractor
func WithTokenExtractor(e TokenExtractor) Option {
	return func(g *Gate) error {
		if e == nil {
			return ErrTokenExtractorNil
		}
		g.tokenExtractor = e
		return nil
	}
}

// WithExclusionUrls configures URLs that bypass the gate.
// URLs can be full URLs or just paths.
func WithExclusionUrls(exclusions []string) Option {
	return func(g *Gate) error {
		if len(exclusions) == 0 {
			return ErrExclusionUrlsEmpty
		}
		g.exclusionURLHandler = func(r *http.Request) bool {
			requestFullURL := r.URL.String()
			requestPath := r.URL.Path

			for _, exclusion := range exclusions {
				if requestFullURL == exclusion || requestPath == exclusion {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithLogger sets an optional logger for the gate and its core.
// *slog.Logger works as is; see NewLogrusLogger, NewZapLogger and
// NewZerologLogger for the other supported loggers.
func WithLogger(logger core.Logger) Option {
	return func(g *Gate) error {
		if logger == nil {
			return ErrLoggerNil
		}
		g.logger = logger
		return nil
	}
}

// WithMetrics sets the recorder for authorization outcomes.
//
// Example:
//
//	gate, err := jwtgate.New(
//	    jwtgate.WithVerifier(v),
//	    jwtgate.WithMetrics(jwtgate.NewPrometheusMetrics(prometheus.DefaultRegisterer, "myapi")),
//	)
func WithMetrics(m core.Metrics) Option {
	return func(g *Gate) error {
		if m == nil {
			return ErrMetricsNil
		}
		g.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for authorization spans.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gate) error {
		if t == nil {
			return ErrTracerNil
		}
		g.tracer = t
		return nil
	}
}

// Sentinel errors for configuration validation
var (
	ErrVerifierNil          = errors.New("verifier cannot be nil (use WithVerifier)")
	ErrRevocationCheckerNil = errors.New("revocation checker cannot be nil")
	ErrErrorHandlerNil      = errors.New("errorHandler cannot be nil")
	ErrTokenExtractorNil    = errors.New("tokenExtractor cannot be nil")
	ErrExclusionUrlsEmpty   = errors.New("exclusion URLs list cannot be empty")
	ErrLoggerNil            = errors.New("logger cannot be nil")
	ErrMetricsNil           = errors.New("metrics cannot be nil")
	ErrTracerNil            = errors.New("tracer cannot be nil")
)
