// Package oidc discovers the key set location of an OpenID Connect issuer
// from its /.well-known/openid-configuration document.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDocumentSize = 1 << 20

// WellKnownEndpoints holds the parts of the discovery document the gate uses.
type WellKnownEndpoints struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// GetWellKnownEndpoints fetches the discovery document of issuer, which
// must be the exact issuer identifier (for example https://tenant.example.com/).
// The issuer reported by the document has to match it.
func GetWellKnownEndpoints(ctx context.Context, client *http.Client, issuer string) (*WellKnownEndpoints, error) {
	if client == nil {
		client = http.DefaultClient
	}
	discoveryURL := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get well-known endpoints: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch well-known endpoints from %s: %w", discoveryURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("well-known endpoints request returned status %d", resp.StatusCode)
	}

	var endpoints WellKnownEndpoints
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from well-known endpoints: %w", err)
	}

	if endpoints.Issuer == "" {
		return nil, errors.New("discovery document is missing required 'issuer' field")
	}
	if endpoints.Issuer != issuer {
		return nil, fmt.Errorf("issuer mismatch: expected %q, discovery document reports %q", issuer, endpoints.Issuer)
	}
	if endpoints.JWKSURI == "" {
		return nil, errors.New("discovery document is missing required 'jwks_uri' field")
	}

	return &endpoints, nil
}
