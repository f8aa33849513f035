package validator

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Signature algorithms. Only the RSA family can be verified with the
// modulus/exponent keys published in the key set.
const (
	RS256 = SignatureAlgorithm("RS256") // RSASSA-PKCS-v1.5 using SHA-256
	RS384 = SignatureAlgorithm("RS384") // RSASSA-PKCS-v1.5 using SHA-384
	RS512 = SignatureAlgorithm("RS512") // RSASSA-PKCS-v1.5 using SHA-512
	PS256 = SignatureAlgorithm("PS256") // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 = SignatureAlgorithm("PS384") // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 = SignatureAlgorithm("PS512") // RSASSA-PSS using SHA512 and MGF1-SHA512
)

// DefaultPermissionsClaim is the claim read into ClaimSet.Permissions.
const DefaultPermissionsClaim = "permissions"

// SignatureAlgorithm is a signature algorithm.
type SignatureAlgorithm string

var allowedSigningAlgorithms = map[SignatureAlgorithm]jwa.SignatureAlgorithm{
	RS256: jwa.RS256,
	RS384: jwa.RS384,
	RS512: jwa.RS512,
	PS256: jwa.PS256,
	PS384: jwa.PS384,
	PS512: jwa.PS512,
}

// KeyResolver resolves a key identifier to a published key.
// *jwks.Cache implements it.
type KeyResolver interface {
	LookupKey(ctx context.Context, kid string) (jwk.Key, error)
}

// Validator verifies a token's signature against the resolved key and
// validates its registered claims.
type Validator struct {
	keys             KeyResolver                                 // Required.
	issuer           string                                      // Required.
	audiences        []string                                    // Required.
	algorithms       []SignatureAlgorithm                        // Optional, defaults to RS256.
	allowedClockSkew time.Duration                               // Optional.
	permissionsClaim string                                      // Optional.
	clock            func() time.Time                            // Optional.
	claimsValidator  func(context.Context, *core.ClaimSet) error // Optional.
}

// New sets up a Validator.
//
// Required options:
//   - WithKeyResolver
//   - WithIssuerDomain or WithIssuer
//   - WithAudience or WithAudiences
//
// Example:
//
//	v, err := validator.New(
//	    validator.WithKeyResolver(cache),
//	    validator.WithIssuerDomain("tenant.example.com"),
//	    validator.WithAudience("https://api.example.com"),
//	    validator.WithAlgorithms(validator.RS256),
//	)
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		algorithms:       []SignatureAlgorithm{RS256},
		permissionsClaim: DefaultPermissionsClaim,
		clock:            time.Now,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if v.keys == nil {
		return nil, errors.New("key resolver is required but not set (use WithKeyResolver option)")
	}
	if v.issuer == "" {
		return nil, errors.New("issuer is required but not set (use WithIssuerDomain or WithIssuer option)")
	}
	if len(v.audiences) == 0 {
		return nil, errors.New("audience is required but not set (use WithAudience or WithAudiences option)")
	}

	return v, nil
}

// VerifyToken checks the token and returns its claims. Every failure is a
// *core.AuthError.
func (v *Validator) VerifyToken(ctx context.Context, token string) (*core.ClaimSet, error) {
	if err := validateTokenFormat(token); err != nil {
		return nil, core.NewAuthError(core.KindTokenUnparseable, err)
	}

	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, core.NewAuthError(core.KindTokenUnparseable, fmt.Errorf("could not parse the token: %w", err))
	}
	signatures := msg.Signatures()
	if len(signatures) != 1 {
		return nil, core.NewAuthError(core.KindTokenUnparseable, fmt.Errorf("expected one signature, got %d", len(signatures)))
	}
	header := signatures[0].ProtectedHeaders()

	kid := header.KeyID()
	if kid == "" {
		return nil, core.NewAuthError(core.KindMalformedHeader, errors.New("token header has no kid"))
	}

	key, err := v.keys.LookupKey(ctx, kid)
	if err != nil {
		if core.KindOf(err) == "" {
			err = core.NewAuthError(core.KindKeySetUnavailable, err)
		}
		return nil, err
	}

	publicKey, err := rsaPublicKey(key)
	if err != nil {
		return nil, core.NewAuthError(core.KindKeyNotFound, err)
	}

	// The header only names the algorithm; it has to be one we were
	// configured to accept.
	alg, err := v.allowedAlgorithm(header.Algorithm())
	if err != nil {
		return nil, core.NewAuthError(core.KindSignatureInvalid, err)
	}

	if _, err := jws.Verify([]byte(token), jws.WithKey(alg, publicKey)); err != nil {
		return nil, core.NewAuthError(core.KindSignatureInvalid, fmt.Errorf("signature verification failed: %w", err))
	}

	parsed, err := jwt.Parse([]byte(token), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, core.NewAuthError(core.KindTokenUnparseable, fmt.Errorf("could not parse the token claims: %w", err))
	}

	if err := v.validateClaims(parsed); err != nil {
		return nil, err
	}

	claims, err := v.claimSet(parsed)
	if err != nil {
		return nil, core.NewAuthError(core.KindInvalidClaims, err)
	}

	if v.claimsValidator != nil {
		if err := v.claimsValidator(ctx, claims); err != nil {
			return nil, core.NewAuthError(core.KindInvalidClaims, fmt.Errorf("custom claims not validated: %w", err))
		}
	}

	return claims, nil
}

func (v *Validator) allowedAlgorithm(headerAlg jwa.SignatureAlgorithm) (jwa.SignatureAlgorithm, error) {
	for _, allowed := range v.algorithms {
		if string(allowed) == headerAlg.String() {
			return allowedSigningAlgorithms[allowed], nil
		}
	}
	return "", fmt.Errorf("signing algorithm %q is not allowed", headerAlg)
}

// rsaPublicKey builds the verification key from the published modulus and
// exponent.
func rsaPublicKey(key jwk.Key) (*rsa.PublicKey, error) {
	if key.KeyType() != jwa.RSA {
		return nil, fmt.Errorf("key %q has type %s, expected RSA", key.KeyID(), key.KeyType())
	}
	if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
		return nil, fmt.Errorf("key %q is published for %q, not signing", key.KeyID(), use)
	}

	var publicKey rsa.PublicKey
	if err := key.Raw(&publicKey); err != nil {
		return nil, fmt.Errorf("key %q is not an RSA public key: %w", key.KeyID(), err)
	}
	return &publicKey, nil
}

// validateClaims checks the time claims first so that an expired token is
// always reported as expired, whatever else is wrong with it.
func (v *Validator) validateClaims(token jwt.Token) error {
	now := v.clock()

	exp := token.Expiration()
	if exp.IsZero() {
		return core.NewAuthError(core.KindInvalidClaims, errors.New(`required claim "exp" is missing`))
	}
	if !now.Add(-v.allowedClockSkew).Before(exp) {
		return core.NewAuthError(core.KindTokenExpired, fmt.Errorf("token expired at %s", exp.UTC().Format(time.RFC3339)))
	}
	if nbf := token.NotBefore(); !nbf.IsZero() && now.Add(v.allowedClockSkew).Before(nbf) {
		return core.NewAuthError(core.KindTokenNotYetValid, fmt.Errorf("token is not valid before %s", nbf.UTC().Format(time.RFC3339)))
	}

	err := jwt.Validate(token,
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.allowedClockSkew),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return core.NewAuthError(core.KindInvalidClaims, fmt.Errorf("expected claims not validated: %w", err))
	}

	if !slices.ContainsFunc(token.Audience(), func(aud string) bool {
		return slices.Contains(v.audiences, aud)
	}) {
		return core.NewAuthError(core.KindInvalidClaims, fmt.Errorf("audience %v does not include any of %v", token.Audience(), v.audiences))
	}

	return nil
}
