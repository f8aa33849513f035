package core

import (
	"errors"
	"net/http"
)

// Kind classifies why an authorization check failed.
// The string value is the machine-readable code rendered to clients.
type Kind string

// Failure kinds. Every failure is terminal for the current request.
const (
	KindMissingAuthHeader       Kind = "authorization_header_missing"
	KindMalformedAuthHeader     Kind = "invalid_header"
	KindUnsupportedScheme       Kind = "unsupported_scheme"
	KindMalformedHeader         Kind = "malformed_token_header"
	KindKeyNotFound             Kind = "key_not_found"
	KindKeySetUnavailable       Kind = "key_set_unavailable"
	KindSignatureInvalid        Kind = "invalid_signature"
	KindTokenExpired            Kind = "token_expired"
	KindTokenNotYetValid        Kind = "token_not_yet_valid"
	KindInvalidClaims           Kind = "invalid_claims"
	KindTokenUnparseable        Kind = "token_unparseable"
	KindTokenRevoked            Kind = "token_revoked"
	KindRevocationUnavailable   Kind = "revocation_unavailable"
	KindPermissionsClaimMissing Kind = "permissions_missing"
	KindPermissionDenied        Kind = "permission_denied"
)

// StatusCode returns the HTTP status a boundary layer should answer with.
func (k Kind) StatusCode() int {
	switch k {
	case KindMissingAuthHeader,
		KindMalformedAuthHeader,
		KindUnsupportedScheme,
		KindMalformedHeader,
		KindSignatureInvalid,
		KindTokenExpired,
		KindTokenNotYetValid,
		KindInvalidClaims,
		KindTokenRevoked:
		return http.StatusUnauthorized
	case KindKeyNotFound,
		KindTokenUnparseable,
		KindPermissionsClaimMissing:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindKeySetUnavailable, KindRevocationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var defaultMessages = map[Kind]string{
	KindMissingAuthHeader:       "Authorization header is expected.",
	KindMalformedAuthHeader:     "Authorization header is invalid.",
	KindUnsupportedScheme:       `Authorization header must start with "Bearer".`,
	KindMalformedHeader:         "Authorization malformed.",
	KindKeyNotFound:             "Unable to find the appropriate key.",
	KindKeySetUnavailable:       "Unable to fetch the signing key set.",
	KindSignatureInvalid:        "Token signature is invalid.",
	KindTokenExpired:            "Token expired.",
	KindTokenNotYetValid:        "Token is not valid yet.",
	KindInvalidClaims:           "Incorrect claims. Please, check the audience and issuer.",
	KindTokenUnparseable:        "Unable to parse authentication token.",
	KindTokenRevoked:            "Token has been revoked.",
	KindRevocationUnavailable:   "Unable to check token revocation.",
	KindPermissionsClaimMissing: "Permissions not included in JWT.",
	KindPermissionDenied:        "Permission not found.",
}

// Message returns the default human-readable description for the kind.
func (k Kind) Message() string {
	if msg, ok := defaultMessages[k]; ok {
		return msg
	}
	return "Something went wrong while checking the JWT."
}

// AuthError is returned for every rejected authorization check.
// Message is safe to show to clients; Details holds the underlying cause
// for logs and must never be rendered in a response.
type AuthError struct {
	Kind    Kind
	Message string
	Details error
}

// NewAuthError creates an AuthError of the given kind with its default message.
func NewAuthError(kind Kind, details error) *AuthError {
	return &AuthError{Kind: kind, Message: kind.Message(), Details: details}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Details != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Details.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Details
}

// Is reports whether target is an AuthError of the same kind, so the
// exported sentinels below can be used with errors.Is.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// StatusCode returns the HTTP status for the error's kind.
func (e *AuthError) StatusCode() int {
	return e.Kind.StatusCode()
}

// Sentinels, one per kind, for use with errors.Is.
var (
	ErrMissingAuthHeader       = NewAuthError(KindMissingAuthHeader, nil)
	ErrMalformedAuthHeader     = NewAuthError(KindMalformedAuthHeader, nil)
	ErrUnsupportedScheme       = NewAuthError(KindUnsupportedScheme, nil)
	ErrMalformedHeader         = NewAuthError(KindMalformedHeader, nil)
	ErrKeyNotFound             = NewAuthError(KindKeyNotFound, nil)
	ErrKeySetUnavailable       = NewAuthError(KindKeySetUnavailable, nil)
	ErrSignatureInvalid        = NewAuthError(KindSignatureInvalid, nil)
	ErrTokenExpired            = NewAuthError(KindTokenExpired, nil)
	ErrTokenNotYetValid        = NewAuthError(KindTokenNotYetValid, nil)
	ErrInvalidClaims           = NewAuthError(KindInvalidClaims, nil)
	ErrTokenUnparseable        = NewAuthError(KindTokenUnparseable, nil)
	ErrTokenRevoked            = NewAuthError(KindTokenRevoked, nil)
	ErrRevocationUnavailable   = NewAuthError(KindRevocationUnavailable, nil)
	ErrPermissionsClaimMissing = NewAuthError(KindPermissionsClaimMissing, nil)
	ErrPermissionDenied        = NewAuthError(KindPermissionDenied, nil)

	// ErrClaimsNotFound is returned when claims cannot be retrieved from context.
	ErrClaimsNotFound = errors.New("claims not found in context")
)

// KindOf returns the kind carried by err, or "" when err is not an AuthError.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}

// StatusCode returns the HTTP status for err. Errors that are not
// AuthErrors map to 500.
func StatusCode(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode()
	}
	return http.StatusInternalServerError
}
