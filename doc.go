/*
Package jwtgate guards net/http handlers with OAuth2 bearer tokens issued by
an OpenID Connect identity provider.

A request is let through only when its Authorization header carries an
RS256-signed JWT from the configured issuer, for the configured audience,
that is not revoked and that grants the permission the route requires.
The package is the HTTP adapter in the Core-Adapter pattern; the
transport-independent decision lives in package core.

# Quick Start

	import (
	    "github.com/gatekeep/go-jwt-gate"
	    "github.com/gatekeep/go-jwt-gate/jwks"
	    "github.com/gatekeep/go-jwt-gate/validator"
	)

	func main() {
	    keys, err := jwks.New(jwks.WithIssuerDomain("tenant.example.com"))
	    if err != nil {
	        log.Fatal(err)
	    }

	    v, err := validator.New(
	        validator.WithKeyResolver(keys),
	        validator.WithIssuerDomain("tenant.example.com"),
	        validator.WithAudience("https://api.example.com"),
	    )
	    if err != nil {
	        log.Fatal(err)
	    }

	    gate, err := jwtgate.New(jwtgate.WithVerifier(v))
	    if err != nil {
	        log.Fatal(err)
	    }

	    http.Handle("/api/messages", gate.Require("read:messages")(messagesHandler))
	    http.ListenAndServe(":8080", nil)
	}

# Protected Operations

Protect hands the verified claim set to the operation as its first
argument:

	http.Handle("/api/me", gate.Protect("", func(claims *core.ClaimSet, w http.ResponseWriter, r *http.Request) {
	    fmt.Fprintf(w, "hello %s", claims.Subject)
	}))

Handlers behind Require read it from the context instead:

	claims, err := jwtgate.GetClaims(r.Context())

# Revocation

	revoked := revocation.NewList()
	gate, err := jwtgate.New(
	    jwtgate.WithVerifier(v),
	    jwtgate.WithRevocationChecker(revoked),
	)

	revoked.Add(rawToken) // or the token's jti

A revocation check only runs for tokens that verified. If the checker
fails the request is rejected with 503 (revocation_unavailable).

# Error Responses

DefaultErrorHandler writes a JSON body with a stable code and a message
that never includes key material or library errors:

	HTTP/1.1 401 Unauthorized
	WWW-Authenticate: Bearer error="invalid_token", error_description="Token expired."

	{"code":"token_expired","message":"Token expired."}

Status codes:

	401  authorization_header_missing, invalid_header, unsupported_scheme,
	     malformed_token_header, invalid_signature, token_expired,
	     token_not_yet_valid, invalid_claims, token_revoked
	400  key_not_found, token_unparseable, permissions_missing
	403  permission_denied
	503  key_set_unavailable, revocation_unavailable

# Observability

	reg := prometheus.NewRegistry()
	gate, err := jwtgate.New(
	    jwtgate.WithVerifier(v),
	    jwtgate.WithLogger(jwtgate.NewZapLogger(zapLogger)),
	    jwtgate.WithMetrics(jwtgate.NewPrometheusMetrics(reg, "myapi")),
	    jwtgate.WithTracer(otel.Tracer("myapi")),
	)

# Thread Safety

A Gate is immutable after creation and safe for concurrent use.
*/
package jwtgate
