package jwtgrpc

import (
	"errors"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Option configures the Interceptor.
type Option func(*Interceptor) error

// WithTokenExtractor sets the function that extracts the token from the call.
//
// Default: MetadataTokenExtractor
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) error {
		if extractor == nil {
			return errors.New("token extractor cannot be nil")
		}
		i.tokenExtractor = extractor
		return nil
	}
}

// WithExcludedMethods lets the listed full method names through without
// authorization.
func WithExcludedMethods(methods ...string) Option {
	methodSet := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		methodSet[m] = struct{}{}
	}
	return func(i *Interceptor) error {
		if len(methodSet) == 0 {
			return errors.New("excluded methods list cannot be empty")
		}
		i.exclusionChecker = func(method string) bool {
			_, ok := methodSet[method]
			return ok
		}
		return nil
	}
}

// WithExclusionChecker allows configuring a custom exclusion checker for gRPC methods.
func WithExclusionChecker(checker func(method string) bool) Option {
	return func(i *Interceptor) error {
		if checker == nil {
			return errors.New("exclusion checker cannot be nil")
		}
		i.exclusionChecker = checker
		return nil
	}
}

// WithMethodPermissions maps full method names to the permission they
// require. Methods not listed require the default permission.
func WithMethodPermissions(permissions map[string]string) Option {
	return func(i *Interceptor) error {
		for method, permission := range permissions {
			i.permissions[method] = permission
		}
		return nil
	}
}

// WithDefaultPermission sets the permission required by methods missing
// from the method permission map. The default is "", which only requires a
// valid token.
func WithDefaultPermission(permission string) Option {
	return func(i *Interceptor) error {
		i.defaultPermission = permission
		return nil
	}
}

// WithLogger sets a logger for exclusion decisions. Authorization outcomes
// are logged by the core.
func WithLogger(logger core.Logger) Option {
	return func(i *Interceptor) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		i.logger = logger
		return nil
	}
}
