package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim is what a caller asks the Authority to sign.
type Claim struct {
	UserID         string
	OrganizationID string
	Role           string
}

// Identity is a verified, decoded token. It is reconstructed on every
// verification and never persisted.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// Claim returns the signed triple carried by the identity.
func (i Identity) Claim() Claim {
	return Claim{UserID: i.UserID, OrganizationID: i.OrganizationID, Role: i.Role}
}

// tokenClaims is the only supported JWT claims shape for this service.
// Tenant invariant: OrganizationID must be present on every token.
type tokenClaims struct {
	jwt.RegisteredClaims

	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}
