package jwtgrpc

import (
	"errors"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gatekeep/go-jwt-gate/core"
)

// ErrorDomain is the ErrorInfo domain attached to rejected calls.
const ErrorDomain = "jwtgate"

// ToStatus converts an authorization error into a gRPC status error. The
// status message is the client-safe message and an ErrorInfo detail carries
// the error code as its reason.
func ToStatus(err error) error {
	var authErr *core.AuthError
	if !errors.As(err, &authErr) {
		return status.Error(codes.Internal, core.Kind("").Message())
	}

	st := status.New(statusCode(authErr.Kind), authErr.Message)
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(authErr.Kind),
		Domain: ErrorDomain,
	}); derr == nil {
		st = detailed
	}
	return st.Err()
}

func statusCode(kind core.Kind) codes.Code {
	switch kind.StatusCode() {
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Reason returns the error code carried by a status error produced by
// ToStatus, or "" if there is none.
func Reason(err error) core.Kind {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return core.Kind(info.GetReason())
		}
	}
	return ""
}
