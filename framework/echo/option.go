package jwtecho

import (
	"github.com/labstack/echo/v4"

	jwtgate "github.com/gatekeep/go-jwt-gate"
)

// Option is a function that configures the middleware
type Option func(*config)

// WithErrorHandler sets a custom error handler. Its return value is returned
// from the middleware, so returning an *echo.HTTPError hands rendering to
// echo's HTTPErrorHandler.
func WithErrorHandler(handler func(echo.Context, error) error) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

// WithContextKey sets a custom context key to store claims
func WithContextKey(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.contextKey = key
		}
	}
}

// WithTokenExtractor sets a custom token extractor
func WithTokenExtractor(extractor jwtgate.TokenExtractor) Option {
	return func(cfg *config) {
		if extractor != nil {
			cfg.tokenExtractor = extractor
		}
	}
}
