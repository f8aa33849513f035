package jwtgin

import (
	"github.com/gin-gonic/gin"

	jwtgate "github.com/gatekeep/go-jwt-gate"
)

// Option defines a functional option for configuring the middleware
type Option func(*config)

// WithErrorHandler sets a custom error handler for the middleware. The chain
// is aborted after it returns. A nil handler keeps the default, which renders
// errors like jwtgate.DefaultErrorHandler.
func WithErrorHandler(handler func(*gin.Context, error)) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

// WithContextKey stores the claim set under key instead of DefaultClaimsKey.
func WithContextKey(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.contextKey = key
		}
	}
}

// WithTokenExtractor sets the function to extract the token from the request.
func WithTokenExtractor(extractor jwtgate.TokenExtractor) Option {
	return func(cfg *config) {
		if extractor != nil {
			cfg.tokenExtractor = extractor
		}
	}
}
