// Package jwtecho adapts the authorization gate to echo.
package jwtecho

import (
	"github.com/labstack/echo/v4"

	jwtgate "github.com/gatekeep/go-jwt-gate"
	"github.com/gatekeep/go-jwt-gate/core"
)

// DefaultClaimsKey is the echo context key the claim set is stored under.
const DefaultClaimsKey = "jwtgate.claims"

type config struct {
	errorHandler   func(echo.Context, error) error
	contextKey     string
	tokenExtractor jwtgate.TokenExtractor
}

// RequirePermission returns an echo middleware that only calls the next
// handler when the request carries a token granting permission. It panics
// if c is nil.
//
//	e.GET("/api/messages", listMessages, jwtecho.RequirePermission(gate.Core(), "read:messages"))
func RequirePermission(c *core.Core, permission string, opts ...Option) echo.MiddlewareFunc {
	if c == nil {
		panic("jwtecho: nil core")
	}

	cfg := &config{
		errorHandler:   defaultErrorHandler,
		contextKey:     DefaultClaimsKey,
		tokenExtractor: jwtgate.AuthHeaderTokenExtractor,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()

			token, err := cfg.tokenExtractor(req)
			if err != nil {
				return cfg.errorHandler(ctx, c.Reject(req.Context(), permission, err))
			}

			claims, err := c.Authorize(req.Context(), token, permission)
			if err != nil {
				return cfg.errorHandler(ctx, err)
			}

			ctx.Set(cfg.contextKey, claims)
			ctx.SetRequest(req.WithContext(core.SetClaims(req.Context(), claims)))
			return next(ctx)
		}
	}
}

// defaultErrorHandler writes the response itself so the body matches the
// net/http gate, and returns nil to keep echo's HTTPErrorHandler out of it.
func defaultErrorHandler(ctx echo.Context, err error) error {
	jwtgate.DefaultErrorHandler(ctx.Response(), ctx.Request(), err)
	return nil
}

// GetClaims returns the claim set stored by RequirePermission. ok is false
// when the request was not authorized.
func GetClaims(ctx echo.Context) (*core.ClaimSet, bool) {
	return GetClaimsWithKey(ctx, DefaultClaimsKey)
}

// GetClaimsWithKey is GetClaims for middleware configured WithContextKey.
func GetClaimsWithKey(ctx echo.Context, key string) (*core.ClaimSet, bool) {
	claims, ok := ctx.Get(key).(*core.ClaimSet)
	return claims, ok && claims != nil
}
