package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSecret is used when JWT_SECRET is unset. It keeps local setups
// working; SecretWeakness reports it so operators notice.
const DefaultSecret = "hr-platform-insecure-default-secret-change-me"

const minSecretLen = 32

var (
	// ErrUnauthorized wraps every verification failure. Clients only ever see
	// a generic "unauthorized"; the wrapped cause is for logs.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfigurationWeakness marks an insecure but non-fatal signing setup.
	ErrConfigurationWeakness = errors.New("auth: weak signing configuration")
)

// Authority issues and verifies signed, time-limited identity tokens.
// It holds no per-request state and is safe for concurrent use.
type Authority struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewAuthority(cfg config.AuthConfig) *Authority {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = DefaultSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &Authority{
		secret:   []byte(secret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      ttl,
	}
}

// SecretWeakness reports whether the configured secret is the built-in
// default or too short. A nil return means the secret looks fine.
func SecretWeakness(secret string) error {
	if secret == "" || secret == DefaultSecret {
		return fmt.Errorf("%w: JWT_SECRET not set, using built-in default", ErrConfigurationWeakness)
	}
	if len(secret) < minSecretLen {
		return fmt.Errorf("%w: JWT_SECRET shorter than %d bytes", ErrConfigurationWeakness, minSecretLen)
	}
	return nil
}

/* ===================== ISSUE ===================== */

// Issue signs c with an expiry of now+TTL.
func (a *Authority) Issue(now time.Time, c Claim) (string, error) {
	if c.UserID == "" || c.OrganizationID == "" {
		return "", errors.New("auth: user_id and organization_id are required")
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Audience:  audienceOrNil(a.audience),
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			ID:        uuid.NewString(),
		},
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.secret)
}

/* ===================== VERIFY ===================== */

// Verify decodes raw (with or without a "Bearer " prefix) and returns the
// identity it carries. Every failure wraps ErrUnauthorized.
func (a *Authority) Verify(raw string, now time.Time) (Identity, error) {
	tokenString := StripBearer(raw)
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims tokenClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: user_id missing", ErrUnauthorized)
	}
	if claims.OrganizationID == "" {
		return Identity{}, fmt.Errorf("%w: organization_id missing", ErrUnauthorized)
	}

	id := Identity{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// StripBearer trims whitespace and an optional "Bearer " prefix.
func StripBearer(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= len(bearerPrefix) && strings.EqualFold(s[:len(bearerPrefix)], bearerPrefix) {
		s = strings.TrimSpace(s[len(bearerPrefix):])
	}
	return s
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
