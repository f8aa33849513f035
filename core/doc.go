/*
Package core provides the framework-agnostic authorization gate that can be
used across different transport layers (HTTP, gRPC, etc.).

The Core type runs the whole decision for a single request without any
dependency on a specific transport:

	┌─────────────────────────────────────────────┐
	│         Transport Adapters                  │
	│  (net/http, gin, echo, gRPC)                │
	│  • Token extraction                         │
	│  • Error rendering                          │
	└────────────────┬────────────────────────────┘
	                 │ token, required permission
	                 ▼
	┌─────────────────────────────────────────────┐
	│          Core (THIS PACKAGE)                │
	│  1. Verifier (signature + claims)           │
	│  2. RevocationChecker                       │
	│  3. EnforcePermission                       │
	└────────────────┬────────────────────────────┘
	                 │ *ClaimSet
	                 ▼
	            protected operation

Each step short-circuits: a revoked token is never checked for
permissions, and a token that fails verification never reaches the
revocation list.

# Basic Usage

	c, err := core.New(
	    core.WithVerifier(v),
	    core.WithRevocationChecker(revocation.NewList(revokedTokens...)),
	)
	if err != nil {
	    log.Fatal(err)
	}

	claims, err := c.CheckAuthorization(ctx, r.Header.Get("Authorization"), "read:messages")
	if err != nil {
	    http.Error(w, err.(*core.AuthError).Message, core.StatusCode(err))
	    return
	}

# Errors

Every rejection is an *AuthError carrying a Kind. The Kind determines the
machine-readable code and the HTTP status:

	401  authorization_header_missing, invalid_header, unsupported_scheme,
	     malformed_token_header, invalid_signature, token_expired,
	     token_not_yet_valid, invalid_claims, token_revoked
	400  key_not_found, token_unparseable, permissions_missing
	403  permission_denied
	503  key_set_unavailable, revocation_unavailable

Use errors.Is with the exported sentinels to branch on a kind:

	if errors.Is(err, core.ErrTokenExpired) {
	    // ask the client to refresh
	}
*/
package core
