package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer creates a test HTTP server that returns the specified response code and body.
func setupTestServer(t *testing.T, responseCode int, responseBody string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		w.WriteHeader(responseCode)
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetWellKnownEndpoints(t *testing.T) {
	const issuer = "https://tenant1.example.com/"

	testCases := []struct {
		name          string
		responseCode  int
		responseBody  string
		errorContains string
	}{
		{
			name:         "valid document",
			responseCode: http.StatusOK,
			responseBody: `{"issuer":"https://tenant1.example.com/","jwks_uri":"https://tenant1.example.com/.well-known/jwks.json"}`,
		},
		{
			name:          "404 response",
			responseCode:  http.StatusNotFound,
			responseBody:  `{"error": "not found"}`,
			errorContains: "returned status 404",
		},
		{
			name:          "malformed JSON",
			responseCode:  http.StatusOK,
			responseBody:  `{"jwks_uri": "https://example.com/jwks"`,
			errorContains: "failed to decode JSON",
		},
		{
			name:          "empty body",
			responseCode:  http.StatusOK,
			errorContains: "failed to decode JSON",
		},
		{
			name:          "issuer mismatch",
			responseCode:  http.StatusOK,
			responseBody:  `{"issuer":"https://attacker.com/","jwks_uri":"https://attacker.com/.well-known/jwks.json"}`,
			errorContains: "issuer mismatch",
		},
		{
			name:          "missing issuer",
			responseCode:  http.StatusOK,
			responseBody:  `{"jwks_uri":"https://tenant1.example.com/.well-known/jwks.json"}`,
			errorContains: "missing required 'issuer' field",
		},
		{
			name:          "missing jwks_uri",
			responseCode:  http.StatusOK,
			responseBody:  `{"issuer":"https://tenant1.example.com/"}`,
			errorContains: "missing required 'jwks_uri' field",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := setupTestServer(t, tc.responseCode, tc.responseBody)

			// The document is served by the test server but must name the
			// configured issuer, so the request goes through a rewriting client.
			client := &http.Client{Transport: rewriteTransport{target: server.URL}}

			endpoints, err := GetWellKnownEndpoints(context.Background(), client, issuer)
			if tc.errorContains != "" {
				assert.ErrorContains(t, err, tc.errorContains)
				assert.Nil(t, endpoints)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, issuer, endpoints.Issuer)
			assert.Equal(t, "https://tenant1.example.com/.well-known/jwks.json", endpoints.JWKSURI)
		})
	}
}

func TestGetWellKnownEndpoints_NetworkError(t *testing.T) {
	_, err := GetWellKnownEndpoints(context.Background(), &http.Client{}, "http://invalid.invalid/")

	assert.ErrorContains(t, err, "could not fetch well-known endpoints")
}

func TestGetWellKnownEndpoints_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := GetWellKnownEndpoints(context.Background(), client, server.URL+"/")

	assert.Error(t, err)
}

func TestGetWellKnownEndpoints_InvalidRequest(t *testing.T) {
	_, err := GetWellKnownEndpoints(context.Background(), nil, "://bad")

	assert.ErrorContains(t, err, "could not build request")
}

type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, rt.target+r.URL.Path, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultTransport.RoundTrip(req)
}
