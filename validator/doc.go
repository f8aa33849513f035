/*
Package validator verifies bearer tokens against a published RSA key set
using the lestrrat-go/jwx v2 library.

# Verification order

 1. The token must be a compact JWS no larger than 1MB whose header decodes
    (token_unparseable otherwise).
 2. The header must carry a kid (malformed_token_header).
 3. The header alg must be one of the configured algorithms. The header never
    picks the algorithm on its own, so "none", HS256 and friends are refused
    (invalid_signature).
 4. The kid is resolved through the KeyResolver (key_not_found,
    key_set_unavailable). The key has to be an RSA key published for signing.
 5. The signature is verified with the RSA public key built from the key's
    modulus and exponent (invalid_signature).
 6. exp is checked before anything else in the payload (token_expired), then
    nbf (token_not_yet_valid), then iss, aud and iat (invalid_claims).
 7. The permissions claim, when present, must be an array of strings or a
    space-delimited string (invalid_claims).

# Usage

	cache, err := jwks.New(jwks.WithIssuerDomain("tenant.example.com"))
	if err != nil {
	    log.Fatal(err)
	}

	v, err := validator.New(
	    validator.WithKeyResolver(cache),
	    validator.WithIssuerDomain("tenant.example.com"),
	    validator.WithAudience("https://api.example.com"),
	    validator.WithAlgorithms(validator.RS256, validator.PS256),
	    validator.WithAllowedClockSkew(30*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}

	claims, err := v.VerifyToken(ctx, token)

# Claims

VerifyToken returns a *core.ClaimSet. Permissions is nil when the token has
no permissions claim, and every private claim other than the permissions
claim ends up in Custom.
*/
package validator
