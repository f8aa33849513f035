package core

import (
	"errors"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option is a function that configures the Core.
// Options return errors to enable validation during construction.
type Option func(*Core) error

// New creates a new Core instance with the provided options.
//
// The Core must be configured with at least a Verifier using WithVerifier.
// All other options are optional.
//
// Example:
//
//	c, err := core.New(
//	    core.WithVerifier(v),
//	    core.WithRevocationChecker(revocation.NewList()),
//	    core.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(opts ...Option) (*Core, error) {
	c := &Core{
		metrics: noopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer("jwtgate"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.verifier == nil {
		return nil, errors.New("verifier is required but not set (use WithVerifier option)")
	}

	return c, nil
}

// WithVerifier sets the token verifier. This is a required option.
func WithVerifier(v Verifier) Option {
	return func(c *Core) error {
		if v == nil {
			return errors.New("verifier cannot be nil")
		}
		c.verifier = v
		return nil
	}
}

// WithRevocationChecker sets the revocation checker consulted after a token
// has been verified. Without it no token is considered revoked.
func WithRevocationChecker(r RevocationChecker) Option {
	return func(c *Core) error {
		if r == nil {
			return errors.New("revocation checker cannot be nil")
		}
		c.revocation = r
		return nil
	}
}

// WithLogger sets an optional logger for the Core.
func WithLogger(logger Logger) Option {
	return func(c *Core) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the recorder for authorization outcomes.
func WithMetrics(m Metrics) Option {
	return func(c *Core) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer used to record one span per
// authorization check. Defaults to a no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Core) error {
		if t == nil {
			return errors.New("tracer cannot be nil")
		}
		c.tracer = t
		return nil
	}
}
