package validator

import (
	"fmt"
	"maps"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/gatekeep/go-jwt-gate/core"
)

func (v *Validator) claimSet(token jwt.Token) (*core.ClaimSet, error) {
	private := maps.Clone(token.PrivateClaims())

	claims := &core.ClaimSet{
		Issuer:    token.Issuer(),
		Subject:   token.Subject(),
		Audience:  token.Audience(),
		Expiry:    token.Expiration(),
		NotBefore: token.NotBefore(),
		IssuedAt:  token.IssuedAt(),
		ID:        token.JwtID(),
	}

	if raw, ok := private[v.permissionsClaim]; ok {
		permissions, err := permissionList(raw)
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", v.permissionsClaim, err)
		}
		claims.Permissions = permissions
		delete(private, v.permissionsClaim)
	}

	if len(private) > 0 {
		claims.Custom = private
	}

	return claims, nil
}

// permissionList accepts a JSON array of strings or, as for the OAuth
// scope claim, a single space-delimited string. The result is never nil.
func permissionList(raw any) ([]string, error) {
	switch value := raw.(type) {
	case string:
		return append([]string{}, strings.Fields(value)...), nil
	case []string:
		return append([]string{}, value...), nil
	case []any:
		permissions := make([]string, 0, len(value))
		for i, item := range value {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, expected string", i, item)
			}
			permissions = append(permissions, s)
		}
		return permissions, nil
	default:
		return nil, fmt.Errorf("expected an array of strings, got %T", raw)
	}
}
