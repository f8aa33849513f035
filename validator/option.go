package validator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Option is how options for the Validator are set up.
// Options return errors to enable validation during construction.
type Option func(*Validator) error

// WithKeyResolver sets where signing keys are looked up by kid.
// This is a required option.
func WithKeyResolver(keys KeyResolver) Option {
	return func(v *Validator) error {
		if keys == nil {
			return errors.New("key resolver cannot be nil")
		}
		v.keys = keys
		return nil
	}
}

// WithIssuerDomain sets the expected issuer to https://{domain}/.
// Either this or WithIssuer is required.
func WithIssuerDomain(domain string) Option {
	return func(v *Validator) error {
		if domain == "" {
			return errors.New("issuer domain cannot be empty")
		}
		if strings.Contains(domain, "://") || strings.ContainsAny(domain, "/?#") {
			return fmt.Errorf("issuer domain %q must be a bare host, e.g. tenant.example.com", domain)
		}
		v.issuer = "https://" + domain + "/"
		return nil
	}
}

// WithIssuer sets the exact expected issuer claim (iss).
// Either this or WithIssuerDomain is required.
func WithIssuer(issuerURL string) Option {
	return func(v *Validator) error {
		if issuerURL == "" {
			return errors.New("issuer cannot be empty")
		}
		if _, err := url.Parse(issuerURL); err != nil {
			return fmt.Errorf("invalid issuer URL: %w", err)
		}
		v.issuer = issuerURL
		return nil
	}
}

// WithAudience sets a single expected audience claim (aud) for token validation.
// This is a required option (use either WithAudience or WithAudiences, not both).
func WithAudience(audience string) Option {
	return func(v *Validator) error {
		if audience == "" {
			return errors.New("audience cannot be empty")
		}
		v.audiences = []string{audience}
		return nil
	}
}

// WithAudiences sets multiple expected audiences. The token must carry at
// least one of them.
func WithAudiences(audiences []string) Option {
	return func(v *Validator) error {
		if len(audiences) == 0 {
			return errors.New("audiences cannot be empty")
		}
		for i, aud := range audiences {
			if aud == "" {
				return fmt.Errorf("audience at index %d cannot be empty", i)
			}
		}
		v.audiences = append([]string{}, audiences...)
		return nil
	}
}

// WithAlgorithms sets the signing algorithms a token may use. Defaults to
// RS256. Only RS256, RS384, RS512, PS256, PS384 and PS512 are supported.
func WithAlgorithms(algorithms ...SignatureAlgorithm) Option {
	return func(v *Validator) error {
		if len(algorithms) == 0 {
			return errors.New("at least one signature algorithm is required")
		}
		for _, alg := range algorithms {
			if _, ok := allowedSigningAlgorithms[alg]; !ok {
				return fmt.Errorf("unsupported signature algorithm: %s", alg)
			}
		}
		v.algorithms = append([]SignatureAlgorithm{}, algorithms...)
		return nil
	}
}

// WithAllowedClockSkew sets the allowed clock skew for time-based claims.
//
// This allows for some tolerance when validating exp, nbf, and iat claims
// to account for clock differences between systems. If not set, the default
// is 0 (no clock skew allowed).
func WithAllowedClockSkew(skew time.Duration) Option {
	return func(v *Validator) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		v.allowedClockSkew = skew
		return nil
	}
}

// WithPermissionsClaim sets the claim read into ClaimSet.Permissions.
// Defaults to "permissions".
func WithPermissionsClaim(name string) Option {
	return func(v *Validator) error {
		if name == "" {
			return errors.New("permissions claim name cannot be empty")
		}
		v.permissionsClaim = name
		return nil
	}
}

// WithClock overrides the time source used for exp, nbf and iat.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		v.clock = clock
		return nil
	}
}

// WithClaimsValidator runs f on every claim set that passed the standard
// checks. An error from f rejects the token as invalid_claims.
func WithClaimsValidator(f func(context.Context, *core.ClaimSet) error) Option {
	return func(v *Validator) error {
		if f == nil {
			return errors.New("claims validator cannot be nil")
		}
		v.claimsValidator = f
		return nil
	}
}

// ParseAlgorithms converts algorithm names, as found in configuration.
func ParseAlgorithms(names []string) ([]SignatureAlgorithm, error) {
	algorithms := make([]SignatureAlgorithm, 0, len(names))
	for _, name := range names {
		alg := SignatureAlgorithm(strings.ToUpper(strings.TrimSpace(name)))
		if _, ok := allowedSigningAlgorithms[alg]; !ok {
			return nil, fmt.Errorf("unsupported signature algorithm: %s", name)
		}
		algorithms = append(algorithms, alg)
	}
	return algorithms, nil
}
