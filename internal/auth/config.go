package auth

import "time"

// Config holds auth configuration
type Config struct {
	Issuer   string
	JWKSURL  string
	Audience string // optional

	// JWKSRefresh defaults to 15m when zero.
	JWKSRefresh time.Duration
}

// Roles known to the practice. Keycloak realm roles are matched case-insensitively.
const (
	RoleAdmin        = "ADMIN"
	RoleOrthodontist = "ORTHODONTIST"
	RoleAssistant    = "ASSISTANT"
	RoleReceptionist = "RECEPTIONIST"
)
