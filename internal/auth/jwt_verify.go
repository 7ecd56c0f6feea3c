package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Principal holds identity extracted from a validated token.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
	Claims jwt.MapClaims
}

// HasRole reports whether the principal carries role, ignoring case.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

var (
	ErrNoToken         = errors.New("no token provided")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrMissingSub      = errors.New("missing sub claim")
)

// Verifier validates Keycloak-issued RS256 access tokens.
type Verifier struct {
	cfg  Config
	keys KeyProvider
}

// NewVerifier constructs a verifier with config and a key source.
func NewVerifier(cfg Config, keys KeyProvider) *Verifier {
	return &Verifier{cfg: cfg, keys: keys}
}

// ParseAndVerifyToken verifies a bearer token, validates issuer/exp/aud and returns Principal.
func (v *Verifier) ParseAndVerifyToken(tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoToken
	}
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		// enforce RS256
		if t.Method != jwt.SigningMethodRS256 {
			return nil, ErrInvalidToken
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		return v.keys.Get(kid)
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if iss, _ := claims["iss"].(string); iss != v.cfg.Issuer {
		return nil, ErrInvalidIssuer
	}
	if !claims.VerifyExpiresAt(jwt.TimeFunc().Unix(), true) {
		return nil, ErrInvalidToken
	}
	if v.cfg.Audience != "" && !audienceMatches(claims, v.cfg.Audience) {
		return nil, ErrInvalidAudience
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrMissingSub
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}

	return &Principal{
		UserID: sub,
		Email:  email,
		Name:   name,
		Roles:  realmRoles(claims),
		Claims: claims,
	}, nil
}

// azp is accepted as audience since Keycloak omits aud for public clients.
func audienceMatches(claims jwt.MapClaims, aud string) bool {
	if claims.VerifyAudience(aud, true) {
		return true
	}
	azp, _ := claims["azp"].(string)
	return azp == aud
}

// Keycloak puts the practice role in realm_access.roles.
func realmRoles(claims jwt.MapClaims) []string {
	var roles []string
	ra, ok := claims["realm_access"].(map[string]interface{})
	if !ok {
		return roles
	}
	rr, ok := ra["roles"].([]interface{})
	if !ok {
		return roles
	}
	for _, r := range rr {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
