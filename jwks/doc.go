/*
Package jwks caches an issuer's published JSON Web Key Set and resolves key
identifiers against it.

A Cache fetches the set from https://{issuer-domain}/.well-known/jwks.json,
from an explicit URI, or from the jwks_uri advertised by the issuer's OpenID
discovery document:

	cache, err := jwks.New(
	    jwks.WithIssuerDomain("tenant.example.com"),
	    jwks.WithCacheTTL(5*time.Minute),
	)
	if err != nil {
	    log.Fatal(err)
	}

	key, err := cache.LookupKey(ctx, kid)

# Caching

The set is fetched on the first lookup and then served from memory for the
cache TTL (15 minutes by default, extended by a longer Cache-Control max-age
between 1 second and 7 days). Once 80% of the TTL has passed a lookup starts
a background refresh and keeps answering from the current set. Only one
fetch runs at a time; concurrent lookups on a cold cache wait for it.

Refresh fetches synchronously and is meant for startup and for schedulers.
A failed Refresh keeps the previous set.

# Errors

	core.ErrKeySetUnavailable  network error, non-200 answer, malformed JSON,
	                           failed discovery
	core.ErrKeyNotFound        the set has no key with the requested kid

An unknown kid does not trigger a refetch.
*/
package jwks
