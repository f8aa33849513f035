package validator

import (
	"errors"
	"strings"
)

var (
	// ErrNotCompactJWS is returned for tokens that do not have exactly the
	// three segments of a compact JWS (header.payload.signature).
	ErrNotCompactJWS = errors.New("token is not a compact JWS")

	// ErrTokenTooLarge is returned for tokens over maxTokenSize.
	ErrTokenTooLarge = errors.New("token exceeds maximum size (1MB)")
)

const maxTokenSize = 1 << 20

// validateTokenFormat rejects obviously malformed input before any decoding.
// Counting dots first also keeps JSON serializations and JWE out of the
// JOSE parser.
func validateTokenFormat(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	if len(token) > maxTokenSize {
		return ErrTokenTooLarge
	}
	if strings.Count(token, ".") != 2 {
		return ErrNotCompactJWS
	}
	return nil
}
