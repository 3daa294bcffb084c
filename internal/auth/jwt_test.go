package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hr-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuthority(t *testing.T) *Authority {
	t.Helper()
	return NewAuthority(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		JWTIssuer: "issuer",
	})
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	a := newTestAuthority(t)
	now := time.Unix(1700000000, 0).UTC()
	want := Claim{UserID: "user-1", OrganizationID: "org-1", Role: "admin"}

	tok, err := a.Issue(now, want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := a.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Claim() != want {
		t.Fatalf("unexpected claim: %+v", id.Claim())
	}
	if !id.IssuedAt.Equal(now) {
		t.Fatalf("expected issued_at %v, got %v", now, id.IssuedAt)
	}
	if !id.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected 7 day expiry, got %v", id.ExpiresAt)
	}
}

func TestVerify_AcceptsBearerPrefix(t *testing.T) {
	a := newTestAuthority(t)
	now := time.Now()
	tok, err := a.Issue(now, Claim{UserID: "u", OrganizationID: "o", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, raw := range []string{"Bearer " + tok, "  Bearer " + tok + " ", "bearer " + tok} {
		if _, err := a.Verify(raw, now); err != nil {
			t.Fatalf("verify(%q): %v", raw[:10], err)
		}
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	a := newTestAuthority(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, err := a.Issue(now, Claim{UserID: "u", OrganizationID: "o", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := a.Verify(tok, now.Add(7*24*time.Hour-time.Second)); err != nil {
		t.Fatalf("expected valid just before expiry, got %v", err)
	}
	for _, late := range []time.Duration{time.Second, 20 * time.Second, time.Minute} {
		if _, err := a.Verify(tok, now.Add(7*24*time.Hour+late)); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized %s after expiry, got %v", late, err)
		}
	}
	_, err = a.Verify(tok, now.Add(7*24*time.Hour))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after expiry, got %v", err)
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	a := newTestAuthority(t)
	now := time.Now()
	tok, err := a.Issue(now, Claim{UserID: "u", OrganizationID: "o", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact jws, got %d parts", len(parts))
	}
	payload := parts[1]
	// Skip the last char: its low bits may be padding.
	for i := 0; i < len(payload)-1; i += 7 {
		b := []byte(payload)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		forged := parts[0] + "." + string(b) + "." + parts[2]
		if _, err := a.Verify(forged, now); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected tampered token (pos %d) to be rejected, got %v", i, err)
		}
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	now := time.Now()
	other := NewAuthority(config.AuthConfig{JWTSecret: "another-secret-another-secret-xx"})
	tok, err := other.Issue(now, Claim{UserID: "u", OrganizationID: "o", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := newTestAuthority(t).Verify(tok, now); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVerify_RejectsMissingTenant(t *testing.T) {
	a := newTestAuthority(t)
	now := time.Now()

	// Hand-sign a token without organization_id using the same secret.
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "issuer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserID: "u",
		Role:   "admin",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := a.Verify(tok, now); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rejection without organization_id, got %v", err)
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	a := newTestAuthority(t)
	for _, raw := range []string{"", "   ", "Bearer ", "not-a-token", "a.b.c"} {
		id, err := a.Verify(raw, time.Now())
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("verify(%q): expected ErrUnauthorized, got %v", raw, err)
		}
		if id != (Identity{}) {
			t.Fatalf("verify(%q): expected zero identity, got %+v", raw, id)
		}
	}
}

func TestIssue_RequiresTenant(t *testing.T) {
	if _, err := newTestAuthority(t).Issue(time.Now(), Claim{UserID: "u"}); err == nil {
		t.Fatalf("expected error without organization_id")
	}
}

func TestNewAuthority_FallsBackToDefaultSecret(t *testing.T) {
	a := NewAuthority(config.AuthConfig{})
	now := time.Now()
	tok, err := a.Issue(now, Claim{UserID: "u", OrganizationID: "o"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := a.Verify(tok, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSecretWeakness(t *testing.T) {
	if err := SecretWeakness(""); !errors.Is(err, ErrConfigurationWeakness) {
		t.Fatalf("expected weakness for empty secret")
	}
	if err := SecretWeakness(DefaultSecret); !errors.Is(err, ErrConfigurationWeakness) {
		t.Fatalf("expected weakness for default secret")
	}
	if err := SecretWeakness("short"); !errors.Is(err, ErrConfigurationWeakness) {
		t.Fatalf("expected weakness for short secret")
	}
	if err := SecretWeakness("0123456789abcdef0123456789abcdef"); err != nil {
		t.Fatalf("expected strong secret, got %v", err)
	}
}
