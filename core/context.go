package core

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	claimsKey contextKey = iota
)

// GetClaims retrieves the verified claim set from the context.
// It returns ErrClaimsNotFound when the request was never authorized.
func GetClaims(ctx context.Context) (*ClaimSet, error) {
	claims, ok := ctx.Value(claimsKey).(*ClaimSet)
	if !ok || claims == nil {
		return nil, ErrClaimsNotFound
	}
	return claims, nil
}

// SetClaims stores claims in the context.
// This is a helper function for adapters to set claims after authorization.
func SetClaims(ctx context.Context, claims *ClaimSet) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// HasClaims checks if claims exist in the context without retrieving them.
func HasClaims(ctx context.Context) bool {
	_, err := GetClaims(ctx)
	return err == nil
}
