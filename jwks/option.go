package jwks

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Option configures a Cache.
type Option func(*Cache) error

// WithIssuerDomain sets the issuer domain (host[:port], no scheme). The key
// set is fetched from https://{domain}/.well-known/jwks.json unless
// WithJWKSURI or WithOpenIDDiscovery says otherwise.
func WithIssuerDomain(domain string) Option {
	return func(c *Cache) error {
		if domain == "" {
			return fmt.Errorf("issuer domain cannot be empty")
		}
		if strings.Contains(domain, "://") || strings.ContainsAny(domain, "/?#") {
			return fmt.Errorf("issuer domain %q must be a bare host, e.g. tenant.example.com", domain)
		}
		c.issuer = "https://" + domain + "/"
		return nil
	}
}

// WithJWKSURI fetches the key set from uri instead of the well-known
// location.
func WithJWKSURI(uri string) Option {
	return func(c *Cache) error {
		u, err := url.Parse(uri)
		if err != nil {
			return fmt.Errorf("invalid JWKS URI: %w", err)
		}
		if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("JWKS URI %q must be an absolute http(s) URL", uri)
		}
		c.jwksURI = u.String()
		return nil
	}
}

// WithOpenIDDiscovery resolves the key set location from the issuer's
// /.well-known/openid-configuration document on first use.
func WithOpenIDDiscovery() Option {
	return func(c *Cache) error {
		c.discovery = true
		return nil
	}
}

// WithHTTPClient sets the client used for discovery and key set fetches.
// If not specified, a client with a 30s timeout is used.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) error {
		if client == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithCacheTTL sets how long a fetched set is used. Zero means the default
// of 15 minutes. A longer Cache-Control max-age from the issuer wins.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl < 0 {
			return fmt.Errorf("cache TTL cannot be negative")
		}
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger logs fetches and fetch failures.
func WithLogger(logger core.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}
