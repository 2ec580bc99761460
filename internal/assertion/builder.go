package assertion

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultAudience is Google's OAuth2 token endpoint. The assertion audience
// must match the endpoint it is exchanged at.
const DefaultAudience = "https://oauth2.googleapis.com/token"

// Lifetime is the validity of an assertion: the maximum Google honors for
// the JWT-bearer grant.
const Lifetime = time.Hour

// Claims is the JWT-bearer claim set. Field order is fixed so that
// serialization is deterministic.
type Claims struct {
	Issuer   string `json:"iss"`
	Subject  string `json:"sub,omitempty"`
	Scope    string `json:"scope"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// Valid satisfies jwt.Claims.
func (c Claims) Valid() error {
	if c.Expiry <= c.IssuedAt {
		return errors.New("assertion expires before it is issued")
	}
	return nil
}

// Params are the inputs to an assertion.
type Params struct {
	// Issuer is the service account email.
	Issuer string

	// Subject is the user to impersonate. Empty means the service account
	// acts as itself and the claim is omitted.
	Subject string

	Scopes   []string
	Audience string
	Now      time.Time
}

// Unsigned is an assertion ready for signing.
type Unsigned struct {
	Claims Claims

	// SigningInput is the base64url header and claims joined with ".".
	SigningInput string
}

// Build produces the unsigned assertion. Identical params produce an
// identical signing input.
func Build(p Params) (Unsigned, error) {
	if p.Issuer == "" {
		return Unsigned{}, errors.New("assertion issuer is required")
	}

	audience := p.Audience
	if audience == "" {
		audience = DefaultAudience
	}

	iat := p.Now.Unix()
	claims := Claims{
		Issuer:   p.Issuer,
		Subject:  p.Subject,
		Scope:    strings.Join(CanonicalScopes(p.Scopes), " "),
		Audience: audience,
		IssuedAt: iat,
		Expiry:   iat + int64(Lifetime/time.Second),
	}

	input, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SigningString()
	if err != nil {
		return Unsigned{}, fmt.Errorf("encode assertion: %w", err)
	}

	return Unsigned{
		Claims:       claims,
		SigningInput: input,
	}, nil
}

// CanonicalScopes trims, de-duplicates and sorts scopes so that equal scope
// sets compare equal regardless of the order they were supplied in. Blank
// entries are dropped.
func CanonicalScopes(scopes []string) []string {
	canonical := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			canonical = append(canonical, s)
		}
	}

	slices.Sort(canonical)
	return slices.Compact(canonical)
}
