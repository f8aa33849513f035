package core

import (
	"slices"
	"time"
)

// ClaimSet is the verified content of a token. It is only ever built after
// the signature, the registered claims and the revocation status have been
// checked.
type ClaimSet struct {
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub,omitempty"`
	Audience  []string  `json:"aud"`
	Expiry    time.Time `json:"exp"`
	NotBefore time.Time `json:"nbf,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ID        string    `json:"jti,omitempty"`

	// Permissions is nil when the token carried no permissions claim and
	// non-nil (possibly empty) when it did.
	Permissions []string `json:"permissions,omitempty"`

	// Custom holds every other private claim of the token.
	Custom map[string]any `json:"custom,omitempty"`
}

// HasPermissionsClaim reports whether the token carried a permissions claim.
func (c *ClaimSet) HasPermissionsClaim() bool {
	return c != nil && c.Permissions != nil
}

// HasPermission reports whether permission is listed in the permissions claim.
func (c *ClaimSet) HasPermission(permission string) bool {
	return c != nil && slices.Contains(c.Permissions, permission)
}

// EnforcePermission checks required against the claim set. An empty
// requirement always succeeds.
func EnforcePermission(required string, claims *ClaimSet) error {
	if required == "" {
		return nil
	}
	if !claims.HasPermissionsClaim() {
		return NewAuthError(KindPermissionsClaimMissing, nil)
	}
	if !claims.HasPermission(required) {
		return NewAuthError(KindPermissionDenied, nil)
	}
	return nil
}
