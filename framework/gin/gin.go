// Package jwtgin adapts the authorization gate to gin.
//
//	r := gin.New()
//	r.GET("/api/messages", jwtgin.RequirePermission(gate.Core(), "read:messages"), func(c *gin.Context) {
//	    claims, _ := jwtgin.GetClaims(c)
//	    c.JSON(http.StatusOK, gin.H{"subject": claims.Subject})
//	})
package jwtgin

import (
	"errors"

	"github.com/gin-gonic/gin"

	jwtgate "github.com/gatekeep/go-jwt-gate"
	"github.com/gatekeep/go-jwt-gate/core"
)

// DefaultClaimsKey is the gin context key the claim set is stored under.
const DefaultClaimsKey = "jwtgate.claims"

var (
	ErrMissingClaims = errors.New("no claims found in gin context")
	ErrInvalidClaims = errors.New("invalid claims type in gin context")
)

type config struct {
	errorHandler   func(*gin.Context, error)
	contextKey     string
	tokenExtractor jwtgate.TokenExtractor
}

// RequirePermission returns a gin middleware that aborts the chain unless
// the request carries a token granting permission. On success the claim set
// is stored in the gin context and in the request context. It panics if c
// is nil.
func RequirePermission(c *core.Core, permission string, opts ...Option) gin.HandlerFunc {
	if c == nil {
		panic("jwtgin: nil core")
	}

	cfg := &config{
		errorHandler:   defaultErrorHandler,
		contextKey:     DefaultClaimsKey,
		tokenExtractor: jwtgate.AuthHeaderTokenExtractor,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx *gin.Context) {
		claims, err := authorize(ctx, c, cfg, permission)
		if err != nil {
			cfg.errorHandler(ctx, err)
			ctx.Abort()
			return
		}

		ctx.Set(cfg.contextKey, claims)
		ctx.Request = ctx.Request.WithContext(core.SetClaims(ctx.Request.Context(), claims))
		ctx.Next()
	}
}

func authorize(ctx *gin.Context, c *core.Core, cfg *config, permission string) (*core.ClaimSet, error) {
	token, err := cfg.tokenExtractor(ctx.Request)
	if err != nil {
		return nil, c.Reject(ctx.Request.Context(), permission, err)
	}
	return c.Authorize(ctx.Request.Context(), token, permission)
}

func defaultErrorHandler(ctx *gin.Context, err error) {
	jwtgate.DefaultErrorHandler(ctx.Writer, ctx.Request, err)
}

// GetClaims returns the claim set stored by RequirePermission under
// DefaultClaimsKey.
func GetClaims(ctx *gin.Context) (*core.ClaimSet, error) {
	return GetClaimsWithKey(ctx, DefaultClaimsKey)
}

// GetClaimsWithKey is GetClaims for middleware configured WithContextKey.
func GetClaimsWithKey(ctx *gin.Context, key string) (*core.ClaimSet, error) {
	value, exists := ctx.Get(key)
	if !exists {
		return nil, ErrMissingClaims
	}

	claims, ok := value.(*core.ClaimSet)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
