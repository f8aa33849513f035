package jwtgate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/go-jwt-gate/core"
	"github.com/gatekeep/go-jwt-gate/internal/testissuer"
	"github.com/gatekeep/go-jwt-gate/jwks"
	"github.com/gatekeep/go-jwt-gate/revocation"
	"github.com/gatekeep/go-jwt-gate/validator"
)

// newIssuerGate wires a real key set cache and verifier to iss.
func newIssuerGate(t *testing.T, iss *testissuer.Issuer, opts ...Option) *Gate {
	t.Helper()

	keys, err := jwks.New(jwks.WithIssuerDomain(iss.Domain()), jwks.WithHTTPClient(iss.Client()))
	require.NoError(t, err)

	v, err := validator.New(
		validator.WithKeyResolver(keys),
		validator.WithIssuerDomain(iss.Domain()),
		validator.WithAudience(testissuer.DefaultAudience),
	)
	require.NoError(t, err)

	gate, err := New(append([]Option{WithVerifier(v)}, opts...)...)
	require.NoError(t, err)
	return gate
}

type stubVerifier struct {
	claims *core.ClaimSet
	err    error
	calls  int
}

func (s *stubVerifier) VerifyToken(context.Context, string) (*core.ClaimSet, error) {
	s.calls++
	return s.claims, s.err
}

type recordedResponse struct {
	status int
	header http.Header
	body   ErrorResponse
	text   string
}

func serve(t *testing.T, h http.Handler, req *http.Request) recordedResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := recordedResponse{status: res.StatusCode, header: res.Header, text: string(raw)}
	if res.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func requestWithHeader(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	if value != "" {
		req.Header.Set("Authorization", value)
	}
	return req
}

func TestGate_EndToEnd(t *testing.T) {
	iss := testissuer.New(t)
	revoked := revocation.NewList()
	gate := newIssuerGate(t, iss, WithRevocationChecker(revoked))

	var invoked int
	handler := gate.Protect("read:messages", func(claims *core.ClaimSet, w http.ResponseWriter, r *http.Request) {
		invoked++
		fromCtx, err := GetClaims(r.Context())
		require.NoError(t, err)
		assert.Same(t, claims, fromCtx)
		_, _ = io.WriteString(w, claims.Subject)
	})

	revokedToken := iss.Token(map[string]any{"permissions": []string{"read:messages"}})
	revoked.Add(revokedToken)

	unknownKid := iss.SignWith(jwt.SigningMethodRS256, iss.PrivateKey(), "not-published",
		iss.Claims(map[string]any{"permissions": []string{"read:messages"}}))

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   core.Kind
	}{
		{
			name:       "it lets through a token granting the permission",
			header:     "Bearer " + iss.Token(map[string]any{"permissions": []string{"read:messages", "write:messages"}}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "it accepts a space-delimited permissions claim",
			header:     "Bearer " + iss.Token(map[string]any{"permissions": "write:messages read:messages"}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindMissingAuthHeader,
		},
		{
			name:       "one part",
			header:     "Bearer",
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindMalformedAuthHeader,
		},
		{
			name:       "three parts",
			header:     "Bearer a b",
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindMalformedAuthHeader,
		},
		{
			name:       "basic scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindUnsupportedScheme,
		},
		{
			name:       "unparseable token",
			header:     "Bearer abc.def.ghi",
			wantStatus: http.StatusBadRequest,
			wantCode:   core.KindTokenUnparseable,
		},
		{
			name:       "kid absent from the key set",
			header:     "Bearer " + unknownKid,
			wantStatus: http.StatusBadRequest,
			wantCode:   core.KindKeyNotFound,
		},
		{
			name:       "expired token",
			header:     "Bearer " + iss.Token(map[string]any{"exp": time.Now().Add(-time.Minute).Unix(), "aud": "someone-else"}),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindTokenExpired,
		},
		{
			name:       "audience mismatch",
			header:     "Bearer " + iss.Token(map[string]any{"aud": "someone-else", "permissions": []string{"read:messages"}}),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindInvalidClaims,
		},
		{
			name:       "revoked token",
			header:     "Bearer " + revokedToken,
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.KindTokenRevoked,
		},
		{
			name:       "no permissions claim",
			header:     "Bearer " + iss.Token(nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   core.KindPermissionsClaimMissing,
		},
		{
			name:       "permission not granted",
			header:     "Bearer " + iss.Token(map[string]any{"permissions": []string{"write:messages"}}),
			wantStatus: http.StatusForbidden,
			wantCode:   core.KindPermissionDenied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := invoked

			res := serve(t, handler, requestWithHeader(tc.header))

			assert.Equal(t, tc.wantStatus, res.status)
			if tc.wantCode == "" {
				assert.Equal(t, "user-123", res.text)
				assert.Equal(t, before+1, invoked)
				return
			}
			assert.Equal(t, string(tc.wantCode), res.body.Code)
			assert.Equal(t, tc.wantCode.Message(), res.body.Message)
			assert.Equal(t, before, invoked, "protected operation must not run")
		})
	}
}

func TestGate_Authorize_RoundTrip(t *testing.T) {
	iss := testissuer.New(t)
	gate := newIssuerGate(t, iss)

	claims := iss.Claims(map[string]any{
		"permissions": []string{"read:messages"},
		"org_id":      "org-42",
	})
	req := requestWithHeader("Bearer " + iss.Sign(claims))

	got, err := gate.Authorize(req, "read:messages")
	require.NoError(t, err)

	want := &core.ClaimSet{
		Issuer:      iss.Issuer(),
		Subject:     "user-123",
		Audience:    []string{testissuer.DefaultAudience},
		Expiry:      time.Unix(claims["exp"].(int64), 0),
		NotBefore:   time.Unix(claims["nbf"].(int64), 0),
		IssuedAt:    time.Unix(claims["iat"].(int64), 0),
		ID:          claims["jti"].(string),
		Permissions: []string{"read:messages"},
		Custom:      map[string]any{"org_id": "org-42"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("claim set mismatch (-want +got):\n%s", diff)
	}
}

func TestGate_KeySetUnavailable(t *testing.T) {
	iss := testissuer.New(t)
	iss.SetResponse(http.StatusInternalServerError, []byte("down"))
	gate := newIssuerGate(t, iss)

	res := serve(t, gate.Require("")(http.NotFoundHandler()), requestWithHeader("Bearer "+iss.Token(nil)))

	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Equal(t, string(core.KindKeySetUnavailable), res.body.Code)
	assert.Empty(t, res.header.Get("WWW-Authenticate"))
	assert.NotContains(t, res.text, "down")
}

func TestGate_Require(t *testing.T) {
	verifier := &stubVerifier{claims: &core.ClaimSet{Subject: "user-1", Permissions: []string{"read"}}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if HasClaims(r.Context()) {
			_, _ = io.WriteString(w, MustGetClaims(r.Context()).Subject)
			return
		}
		_, _ = io.WriteString(w, "anonymous")
	})

	testCases := []struct {
		name       string
		options    []Option
		method     string
		path       string
		header     string
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{
			name:       "authorized request carries claims",
			method:     http.MethodGet,
			path:       "/api",
			header:     "Bearer token",
			wantStatus: http.StatusOK,
			wantBody:   "user-1",
			wantCalls:  1,
		},
		{
			name:       "OPTIONS is authorized by default",
			method:     http.MethodOptions,
			path:       "/api",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "OPTIONS can skip authorization",
			options:    []Option{WithValidateOnOptions(false)},
			method:     http.MethodOptions,
			path:       "/api",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "excluded path skips authorization",
			options:    []Option{WithExclusionUrls([]string{"/health"})},
			method:     http.MethodGet,
			path:       "/health",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "excluded full URL skips authorization",
			options:    []Option{WithExclusionUrls([]string{"http://example.com/public?x=1"})},
			method:     http.MethodGet,
			path:       "http://example.com/public?x=1",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "non-excluded path is authorized",
			options:    []Option{WithExclusionUrls([]string{"/health"})},
			method:     http.MethodGet,
			path:       "/api",
			header:     "Bearer token",
			wantStatus: http.StatusOK,
			wantBody:   "user-1",
			wantCalls:  1,
		},
		{
			name:       "cookie extractor",
			options:    []Option{WithTokenExtractor(CookieTokenExtractor("session"))},
			method:     http.MethodGet,
			path:       "/api",
			header:     "Bearer ignored",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "custom error handler",
			options: []Option{WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
				http.Error(w, "nope", core.StatusCode(err))
			})},
			method:     http.MethodGet,
			path:       "/api",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "nope\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier.calls = 0
			gate, err := New(append([]Option{WithVerifier(verifier)}, tc.options...)...)
			require.NoError(t, err)

			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			res := serve(t, gate.Require("read")(next), req)

			assert.Equal(t, tc.wantStatus, res.status)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, res.text)
			}
			assert.Equal(t, tc.wantCalls, verifier.calls)
		})
	}
}

func TestGate_Protect(t *testing.T) {
	gate, err := New(
		WithVerifier(&stubVerifier{claims: &core.ClaimSet{Subject: "user-1", Permissions: []string{"read"}}}),
		WithExclusionUrls([]string{"/health"}),
		WithValidateOnOptions(false),
	)
	require.NoError(t, err)

	var got *core.ClaimSet
	calls := 0
	handler := gate.Protect("read", func(claims *core.ClaimSet, w http.ResponseWriter, _ *http.Request) {
		calls++
		got = claims
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("authorized request receives the claim set", func(t *testing.T) {
		calls, got = 0, nil
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Authorization", "Bearer token")

		res := serve(t, handler, req)

		assert.Equal(t, http.StatusNoContent, res.status)
		require.NotNil(t, got)
		assert.Equal(t, "user-1", got.Subject)
	})

	t.Run("excluded URL receives nil claims", func(t *testing.T) {
		calls, got = 0, &core.ClaimSet{}

		res := serve(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusNoContent, res.status)
		assert.Equal(t, 1, calls)
		assert.Nil(t, got)
	})

	t.Run("skipped OPTIONS receives nil claims", func(t *testing.T) {
		calls, got = 0, &core.ClaimSet{}

		res := serve(t, handler, httptest.NewRequest(http.MethodOptions, "/api", nil))

		assert.Equal(t, http.StatusNoContent, res.status)
		assert.Equal(t, 1, calls)
		assert.Nil(t, got)
	})

	t.Run("rejected request never reaches fn", func(t *testing.T) {
		calls = 0

		res := serve(t, handler, httptest.NewRequest(http.MethodGet, "/api", nil))

		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, 0, calls)
	})
}

func TestGate_ExtractorError(t *testing.T) {
	metrics := &recordingMetrics{}
	gate, err := New(
		WithVerifier(&stubVerifier{claims: &core.ClaimSet{}}),
		WithTokenExtractor(func(*http.Request) (string, error) {
			return "", errors.New("conflicting credentials")
		}),
		WithMetrics(metrics),
	)
	require.NoError(t, err)

	_, err = gate.Authorize(requestWithHeader(""), "read")

	assert.ErrorIs(t, err, core.ErrMalformedAuthHeader)
	assert.Equal(t, []core.Kind{core.KindMalformedAuthHeader}, metrics.rejected)
}

func TestNew(t *testing.T) {
	verifier := &stubVerifier{}

	t.Run("defaults", func(t *testing.T) {
		gate, err := New(WithVerifier(verifier))
		require.NoError(t, err)
		assert.NotNil(t, gate.Core())
		assert.NotNil(t, gate.errorHandler)
		assert.NotNil(t, gate.tokenExtractor)
		assert.True(t, gate.validateOnOptions)
	})

	t.Run("verifier is required", func(t *testing.T) {
		_, err := New()
		assert.ErrorIs(t, err, ErrVerifierNil)
	})

	testCases := map[string]struct {
		option  Option
		wantErr error
	}{
		"nil verifier":           {WithVerifier(nil), ErrVerifierNil},
		"nil revocation checker": {WithRevocationChecker(nil), ErrRevocationCheckerNil},
		"nil error handler":      {WithErrorHandler(nil), ErrErrorHandlerNil},
		"nil token extractor":    {WithTokenExtractor(nil), ErrTokenExtractorNil},
		"empty exclusions":       {WithExclusionUrls(nil), ErrExclusionUrlsEmpty},
		"nil logger":             {WithLogger(nil), ErrLoggerNil},
		"nil metrics":            {WithMetrics(nil), ErrMetricsNil},
		"nil tracer":             {WithTracer(nil), ErrTracerNil},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			gate, err := New(WithVerifier(verifier), tc.option)
			assert.Nil(t, gate)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestMustGetClaims_Panics(t *testing.T) {
	assert.Panics(t, func() { MustGetClaims(context.Background()) })
}

type recordingMetrics struct {
	authorized []string
	rejected   []core.Kind
}

func (m *recordingMetrics) IncAuthorized(permission string) {
	m.authorized = append(m.authorized, permission)
}
func (m *recordingMetrics) IncRejected(kind core.Kind)   { m.rejected = append(m.rejected, kind) }
func (m *recordingMetrics) ObserveLatency(time.Duration) {}
