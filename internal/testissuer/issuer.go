// Package testissuer provides an in-process identity provider for tests.
// It serves a JWKS document and an OpenID discovery document over HTTPS and
// signs tokens that verify against them.
//
//	iss := testissuer.New(t)
//	token := iss.Token(map[string]any{"permissions": []string{"read:messages"}})
package testissuer

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

// DefaultAudience is the audience put in tokens unless overridden.
const DefaultAudience = "https://api.example.com"

// Issuer is a mock identity provider backed by an httptest TLS server.
type Issuer struct {
	t      testing.TB
	server *httptest.Server

	key *rsa.PrivateKey
	kid string

	mu           sync.Mutex
	published    []jwk.Key
	cacheControl string
	status       int
	body         []byte

	jwksRequests atomic.Int64
}

// New starts an issuer with one 2048-bit RSA signing key. The server is
// closed when the test ends.
func New(t testing.TB) *Issuer {
	t.Helper()

	iss := &Issuer{t: t, status: http.StatusOK}
	iss.key, iss.kid = iss.newRSAKey()

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", iss.handleJWKS)
	mux.HandleFunc("/.well-known/openid-configuration", iss.handleDiscovery)
	iss.server = httptest.NewTLSServer(mux)
	t.Cleanup(iss.server.Close)

	return iss
}

// Domain is the issuer domain (host:port) as used in configuration.
func (iss *Issuer) Domain() string {
	u, _ := url.Parse(iss.server.URL)
	return u.Host
}

// Issuer returns the iss value, https://{domain}/.
func (iss *Issuer) Issuer() string {
	return iss.server.URL + "/"
}

// JWKSURL returns the location of the key set.
func (iss *Issuer) JWKSURL() string {
	return iss.server.URL + "/.well-known/jwks.json"
}

// Client returns an HTTP client that trusts the issuer's certificate.
func (iss *Issuer) Client() *http.Client {
	return iss.server.Client()
}

// KeyID returns the kid of the current signing key.
func (iss *Issuer) KeyID() string {
	return iss.kid
}

// PrivateKey returns the current signing key.
func (iss *Issuer) PrivateKey() *rsa.PrivateKey {
	return iss.key
}

// JWKSRequests reports how many times the key set has been fetched.
func (iss *Issuer) JWKSRequests() int {
	return int(iss.jwksRequests.Load())
}

// Rotate replaces the signing key with a new one and publishes it
// alongside the previous keys.
func (iss *Issuer) Rotate() string {
	key, kid := iss.newRSAKey()
	iss.mu.Lock()
	iss.key, iss.kid = key, kid
	iss.mu.Unlock()
	return kid
}

// Publish adds raw (an RSA, ECDSA or ed25519 public key) to the served key
// set under kid. An empty use leaves the "use" member out.
func (iss *Issuer) Publish(kid string, raw any, use string) {
	iss.t.Helper()

	key, err := jwk.FromRaw(raw)
	require.NoError(iss.t, err)
	require.NoError(iss.t, key.Set(jwk.KeyIDKey, kid))
	if use != "" {
		require.NoError(iss.t, key.Set(jwk.KeyUsageKey, use))
	}

	iss.mu.Lock()
	iss.published = append(iss.published, key)
	iss.mu.Unlock()
}

// SetCacheControl sets the Cache-Control header sent with the key set.
func (iss *Issuer) SetCacheControl(value string) {
	iss.mu.Lock()
	iss.cacheControl = value
	iss.mu.Unlock()
}

// SetResponse makes the key set endpoint answer with status and body
// instead of the published keys. A nil body restores normal behaviour.
func (iss *Issuer) SetResponse(status int, body []byte) {
	if body == nil {
		status = http.StatusOK
	}
	iss.mu.Lock()
	iss.status, iss.body = status, body
	iss.mu.Unlock()
}

// Claims returns a valid claim set for this issuer: one hour of lifetime,
// the default audience and a random jti. extra is merged on top; a nil
// value deletes the claim.
func (iss *Issuer) Claims(extra map[string]any) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": iss.Issuer(),
		"sub": "user-123",
		"aud": DefaultAudience,
		"iat": now.Unix(),
		"nbf": now.Add(-time.Minute).Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"jti": uuid.NewString(),
	}
	for k, v := range extra {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return claims
}

// Token signs Claims(extra) with the current key using RS256.
func (iss *Issuer) Token(extra map[string]any) string {
	return iss.Sign(iss.Claims(extra))
}

// Sign signs claims with the current key using RS256.
func (iss *Issuer) Sign(claims jwt.MapClaims) string {
	iss.mu.Lock()
	key, kid := iss.key, iss.kid
	iss.mu.Unlock()
	return iss.SignWith(jwt.SigningMethodRS256, key, kid, claims)
}

// SignWith signs claims with an arbitrary method and key. An empty kid
// leaves the header member out.
func (iss *Issuer) SignWith(method jwt.SigningMethod, key any, kid string, claims jwt.MapClaims) string {
	iss.t.Helper()

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(iss.t, err)
	return signed
}

func (iss *Issuer) newRSAKey() (*rsa.PrivateKey, string) {
	iss.t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(iss.t, err)

	kid := uuid.NewString()
	pub, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(iss.t, err)
	require.NoError(iss.t, pub.Set(jwk.KeyIDKey, kid))
	require.NoError(iss.t, pub.Set(jwk.KeyUsageKey, "sig"))
	require.NoError(iss.t, pub.Set(jwk.AlgorithmKey, jwa.RS256))

	iss.mu.Lock()
	iss.published = append(iss.published, pub)
	iss.mu.Unlock()

	return key, kid
}

func (iss *Issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	iss.jwksRequests.Add(1)

	iss.mu.Lock()
	status, body, cacheControl := iss.status, iss.body, iss.cacheControl
	set := jwk.NewSet()
	for _, key := range iss.published {
		_ = set.AddKey(key)
	}
	iss.mu.Unlock()

	if body == nil {
		var err error
		body, err = json.Marshal(set)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (iss *Issuer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"issuer":   iss.Issuer(),
		"jwks_uri": iss.JWKSURL(),
	})
}
