package jwks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/gatekeep/go-jwt-gate/core"
	"github.com/gatekeep/go-jwt-gate/internal/oidc"
)

const (
	// DefaultCacheTTL is how long a fetched key set is served before it is
	// fetched again.
	DefaultCacheTTL = 15 * time.Minute

	maxBodySize            = 1 << 20
	backgroundFetchTimeout = 30 * time.Second
	maxCacheMaxAge         = 7 * 24 * time.Hour
	wellKnownJWKSPath      = "/.well-known/jwks.json"
	defaultHTTPTimeout     = 30 * time.Second
)

// KeyInfo describes one key of the cached set.
type KeyInfo struct {
	KeyID     string `json:"kid"`
	KeyType   string `json:"kty"`
	Use       string `json:"use,omitempty"`
	Algorithm string `json:"alg,omitempty"`
}

// Cache fetches the issuer's published key set and resolves key
// identifiers against it. It is safe for concurrent use: lookups run under
// a read lock and a refresh swaps the whole set under the write lock, so
// readers see either the previous set or the new one.
type Cache struct {
	issuer     string
	jwksURI    string
	discovery  bool
	httpClient *http.Client
	ttl        time.Duration
	logger     core.Logger

	mu        sync.RWMutex
	set       jwk.Set
	fetchedAt time.Time
	expiresAt time.Time
	refreshAt time.Time // 80% of the TTL

	fetchMu    sync.Mutex  // one fetch at a time
	refreshing atomic.Bool // one background refresh at a time
}

// New builds a Cache. Either WithIssuerDomain or WithJWKSURI is required.
// Nothing is fetched until the first lookup or an explicit Refresh.
//
//	cache, err := jwks.New(
//	    jwks.WithIssuerDomain("tenant.example.com"),
//	    jwks.WithCacheTTL(5*time.Minute),
//	)
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		ttl:        DefaultCacheTTL,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if c.issuer == "" && c.jwksURI == "" {
		return nil, fmt.Errorf("issuer domain or JWKS URI is required (use WithIssuerDomain or WithJWKSURI)")
	}
	if c.discovery && c.issuer == "" {
		return nil, fmt.Errorf("OpenID discovery requires an issuer domain (use WithIssuerDomain)")
	}
	if c.jwksURI == "" && !c.discovery {
		c.jwksURI = strings.TrimSuffix(c.issuer, "/") + wellKnownJWKSPath
	}

	return c, nil
}

// LookupKey returns the first key of the set whose kid equals kid. The set
// is fetched when it is cold or expired; a failed fetch is reported as
// core.ErrKeySetUnavailable and an unknown kid as core.ErrKeyNotFound.
func (c *Cache) LookupKey(ctx context.Context, kid string) (jwk.Key, error) {
	set, err := c.keySet(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, core.NewAuthError(core.KindKeyNotFound, fmt.Errorf("no key with kid %q in the key set", kid))
	}
	return key, nil
}

// Refresh fetches the key set now. On failure the previously cached set,
// if any, stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	return c.fetch(ctx)
}

// Keys lists the keys of the cached set, in document order.
func (c *Cache) Keys() []KeyInfo {
	c.mu.RLock()
	set := c.set
	c.mu.RUnlock()

	if set == nil {
		return nil
	}

	infos := make([]KeyInfo, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		infos = append(infos, KeyInfo{
			KeyID:     key.KeyID(),
			KeyType:   key.KeyType().String(),
			Use:       key.KeyUsage(),
			Algorithm: key.Algorithm().String(),
		})
	}
	return infos
}

// FetchedAt reports when the cached set was last replaced.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Cache) keySet(ctx context.Context) (jwk.Set, error) {
	now := time.Now()

	c.mu.RLock()
	set, expiresAt, refreshAt := c.set, c.expiresAt, c.refreshAt
	c.mu.RUnlock()

	if set != nil && now.Before(expiresAt) {
		if now.After(refreshAt) && c.refreshing.CompareAndSwap(false, true) {
			go func() {
				defer c.refreshing.Store(false)
				ctx, cancel := context.WithTimeout(context.Background(), backgroundFetchTimeout)
				defer cancel()
				// On failure the current set is served until it expires.
				_ = c.Refresh(ctx)
			}()
		}
		return set, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// Another caller may have fetched while we waited.
	c.mu.RLock()
	set, expiresAt = c.set, c.expiresAt
	c.mu.RUnlock()
	if set != nil && time.Now().Before(expiresAt) {
		return set, nil
	}

	if err := c.fetch(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set, nil
}

// fetch must be called with fetchMu held.
func (c *Cache) fetch(ctx context.Context) error {
	uri, err := c.resolveJWKSURI(ctx)
	if err != nil {
		return c.unavailable(err)
	}

	set, header, err := c.download(ctx, uri)
	if err != nil {
		return c.unavailable(err)
	}
	ttl := c.lifetime(header)

	now := time.Now()
	c.mu.Lock()
	c.set = set
	c.fetchedAt = now
	c.expiresAt = now.Add(ttl)
	c.refreshAt = now.Add(ttl * 4 / 5)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("key set refreshed", "uri", uri, "keys", set.Len(), "ttl", ttl)
	}
	return nil
}

func (c *Cache) unavailable(err error) error {
	if c.logger != nil {
		c.logger.Warn("key set fetch failed", "error", err)
	}
	return core.NewAuthError(core.KindKeySetUnavailable, err)
}

func (c *Cache) resolveJWKSURI(ctx context.Context) (string, error) {
	c.mu.RLock()
	uri := c.jwksURI
	c.mu.RUnlock()
	if uri != "" {
		return uri, nil
	}

	// Discovery failures are not remembered; the next fetch tries again.
	endpoints, err := oidc.GetWellKnownEndpoints(ctx, c.httpClient, c.issuer)
	if err != nil {
		return "", fmt.Errorf("failed to discover JWKS URI: %w", err)
	}

	c.mu.Lock()
	c.jwksURI = endpoints.JWKSURI
	c.mu.Unlock()

	return endpoints.JWKSURI, nil
}

// download GETs the key set document. The response headers are returned
// for the caching directives.
func (c *Cache) download(ctx context.Context, uri string) (jwk.Set, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("GET %s: unexpected status %s", uri, resp.Status)
	}

	set, err := jwk.ParseReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid key set document: %w", err)
	}
	return set, resp.Header, nil
}

// lifetime is the configured TTL, extended by the response's max-age when
// the issuer allows caching for longer. A max-age outside [1s, 7d] is ignored.
func (c *Cache) lifetime(header http.Header) time.Duration {
	maxAge, ok := cacheMaxAge(header.Get("Cache-Control"))
	if !ok || maxAge < time.Second || maxAge > maxCacheMaxAge {
		return c.ttl
	}
	return max(c.ttl, maxAge)
}

func cacheMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds < 0 {
			continue
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}
