package core

import "strings"

// ParseAuthorizationHeader extracts the bearer token from the value of an
// Authorization header (or an equivalent metadata entry). The token part is
// returned unmodified.
func ParseAuthorizationHeader(value string) (string, error) {
	if value == "" {
		return "", NewAuthError(KindMissingAuthHeader, nil)
	}

	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", NewAuthError(KindMalformedAuthHeader, nil)
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", NewAuthError(KindUnsupportedScheme, nil)
	}

	return parts[1], nil
}
