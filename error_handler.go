package jwtgate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gatekeep/go-jwt-gate/core"
)

// ErrorHandler is called when the gate rejects a request. err is usually a
// *core.AuthError; use errors.Is with the core sentinels or core.StatusCode
// to branch on it. Custom handlers MUST respond with an error status or the
// rejected request will look successful to the client.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrorResponse is the JSON body written by DefaultErrorHandler.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DefaultErrorHandler writes the error's code and message as JSON with the
// status of its kind. 401 and 403 responses also carry an RFC 6750
// WWW-Authenticate challenge. Error details are never written.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, body := errorResponse(err)

	if challenge := wwwAuthenticate(err); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode(), ErrorResponse{Code: string(authErr.Kind), Message: authErr.Message}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Code:    "internal_error",
		Message: core.Kind("").Message(),
	}
}

func wwwAuthenticate(err error) string {
	kind := core.KindOf(err)
	switch kind.StatusCode() {
	case http.StatusUnauthorized:
		if kind == core.KindMissingAuthHeader {
			return "Bearer"
		}
		return fmt.Sprintf("Bearer error=%q, error_description=%q", "invalid_token", kind.Message())
	case http.StatusForbidden:
		return fmt.Sprintf("Bearer error=%q, error_description=%q", "insufficient_scope", kind.Message())
	default:
		return ""
	}
}
