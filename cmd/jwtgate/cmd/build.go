package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	jwtgate "github.com/gatekeep/go-jwt-gate"
	"github.com/gatekeep/go-jwt-gate/config"
	"github.com/gatekeep/go-jwt-gate/core"
	"github.com/gatekeep/go-jwt-gate/jwks"
	"github.com/gatekeep/go-jwt-gate/revocation"
	"github.com/gatekeep/go-jwt-gate/validator"
)

// stack is the assembled gate with the components the commands drive
// directly.
type stack struct {
	core     *core.Core
	keys     *jwks.Cache
	file     *revocation.FileList
	redis    *redis.Client
	registry *prometheus.Registry
}

// Close releases the Redis connection, if any.
func (s *stack) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

func (a *app) buildStack() (*stack, error) {
	cfg := a.cfg
	logger := jwtgate.NewLogrusLogger(a.logger)

	client := a.httpClient
	if client == nil {
		client = &http.Client{Timeout: cfg.JWKS.HTTPTimeout}
	}

	keyOpts := []jwks.Option{
		jwks.WithIssuerDomain(cfg.IssuerDomain),
		jwks.WithHTTPClient(client),
		jwks.WithCacheTTL(cfg.JWKS.CacheTTL),
		jwks.WithLogger(logger),
	}
	if cfg.JWKS.URI != "" {
		keyOpts = append(keyOpts, jwks.WithJWKSURI(cfg.JWKS.URI))
	} else if cfg.JWKS.Discovery {
		keyOpts = append(keyOpts, jwks.WithOpenIDDiscovery())
	}
	keys, err := jwks.New(keyOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up key set cache: %w", err)
	}

	algorithms, err := validator.ParseAlgorithms(cfg.Algorithms)
	if err != nil {
		return nil, err
	}
	v, err := validator.New(
		validator.WithKeyResolver(keys),
		validator.WithIssuerDomain(cfg.IssuerDomain),
		validator.WithAudiences(cfg.Audience),
		validator.WithAlgorithms(algorithms...),
		validator.WithAllowedClockSkew(cfg.ClockSkew),
		validator.WithPermissionsClaim(cfg.PermissionsClaim),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up validator: %w", err)
	}

	s := &stack{keys: keys, registry: prometheus.NewRegistry()}

	checkers, err := s.revocationChain(cfg.Revocation)
	if err != nil {
		return nil, err
	}

	s.core, err = core.New(
		core.WithVerifier(v),
		core.WithRevocationChecker(checkers),
		core.WithLogger(logger),
		core.WithMetrics(jwtgate.NewPrometheusMetrics(s.registry, "jwtgate")),
	)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

func (s *stack) revocationChain(cfg config.RevocationConfig) (revocation.Chain, error) {
	chain := revocation.Chain{revocation.NewList(cfg.Tokens...)}

	if cfg.File != "" {
		file, err := revocation.NewFileList(cfg.File)
		if err != nil {
			return nil, err
		}
		s.file = file
		chain = append(chain, file)
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		chain = append(chain, revocation.NewRedisList(s.redis, cfg.Redis.Key))
	}

	return chain, nil
}
