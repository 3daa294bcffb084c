package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"hr-platform/internal/audit"
	"hr-platform/internal/auth"
	"hr-platform/internal/config"
	"hr-platform/internal/rbac"
	"hr-platform/internal/tenant"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "accounts-test-secret-0123456789abcdef"

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	audits   *audit.MemoryRepo
	tokens   *auth.Authority
	throttle *MemoryThrottle
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := NewMemoryRepo()
	audits := audit.NewMemoryRepo()
	tokens := auth.NewAuthority(config.AuthConfig{JWTSecret: testSecret})
	throttle := NewMemoryThrottle(3, time.Minute)
	svc := NewService(repo, tokens, auth.BcryptHasher{Cost: bcrypt.MinCost}, throttle, audit.NewService(audits, nil), nil)
	return fixture{svc: svc, repo: repo, audits: audits, tokens: tokens, throttle: throttle}
}

func (f fixture) register(t *testing.T, email, org string) Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:             "Admin " + org,
		Email:            email,
		Password:         "s3cret-pass",
		OrganizationName: org,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

func TestRegister_CreatesAdminAndToken(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "Ada@Example.com", "Analytical Engines")

	if s.User.Role != rbac.RoleAdmin || s.User.OrganizationID != s.Organization.ID || !s.User.IsActive {
		t.Fatalf("unexpected user: %+v", s.User)
	}
	if s.User.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", s.User.Email)
	}
	if s.User.PasswordHash == "s3cret-pass" || s.User.PasswordHash == "" {
		t.Fatalf("password must be hashed")
	}

	id, err := f.tokens.Verify(s.Token, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.OrganizationID != s.Organization.ID || id.UserID != s.User.ID || id.Role != rbac.RoleAdmin {
		t.Fatalf("token does not carry the new tenant: %+v", id)
	}

	recs := f.audits.Records()
	if len(recs) != 1 || recs[0].Action != audit.ActionLogin || recs[0].Meta["registered"] != true {
		t.Fatalf("expected registration login record, got %+v", recs)
	}
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Engines")

	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{Name: "x", Email: "ADA@example.com", Password: "123456", OrganizationName: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: expected ErrConflict, got %v", err)
	}
	_, err = f.svc.Register(ctx, RegisterRequest{Name: "x", Email: "bob@example.com", Password: "123456", OrganizationName: "engines"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate org name: expected ErrConflict, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []RegisterRequest{
		{Email: "a@b.co", Password: "123456", OrganizationName: "o"},
		{Name: "n", Email: "not-an-email", Password: "123456", OrganizationName: "o"},
		{Name: "n", Email: "a@b.co", Password: "123", OrganizationName: "o"},
		{Name: "n", Email: "a@b.co", Password: "123456"},
	}
	for i, req := range cases {
		if _, err := f.svc.Register(context.Background(), req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestLogin_TokenCarriesOrganization(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ada@example.com", "X")

	s, err := f.svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	id, err := f.tokens.Verify("Bearer "+s.Token, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.OrganizationID != reg.Organization.ID {
		t.Fatalf("expected org %s, got %s", reg.Organization.ID, id.OrganizationID)
	}
	if s.User.LastLogin == nil {
		t.Fatalf("expected last login set")
	}
	scope, _ := tenant.FromIdentity(id)
	stored, err := f.repo.GetUser(context.Background(), scope, id.UserID)
	if err != nil || stored.LastLogin == nil {
		t.Fatalf("expected last login persisted, got %+v err=%v", stored, err)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ada@example.com", "X")
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, LoginRequest{Email: "", Password: ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty input: expected ErrInvalidArgument, got %v", err)
	}

	u := reg.User
	u.IsActive = false
	f.repo.PutUser(u)
	if _, err := f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("inactive: expected ErrAccountDisabled, got %v", err)
	}
}

func TestLogin_Throttled(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "X")
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.throttle.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"}); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected lockout even with the right password, got %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("expected login after window, got %v", err)
	}
}

func TestLogout_RecordsOnlyForVerifiedCaller(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ada@example.com", "X")
	before := len(f.audits.Records())

	f.svc.Logout(context.Background(), tenant.Scope{})
	if len(f.audits.Records()) != before {
		t.Fatalf("anonymous logout must not be recorded")
	}

	id, _ := f.tokens.Verify(reg.Token, time.Now())
	scope, _ := tenant.FromIdentity(id)
	f.svc.Logout(context.Background(), scope)
	recs := f.audits.Records()
	last := recs[len(recs)-1]
	if last.Action != audit.ActionLogout || last.OrganizationID != reg.Organization.ID {
		t.Fatalf("unexpected logout record: %+v", last)
	}
}

func TestUsers_ScopedDirectory(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "a@x.io", "X")
	b := f.register(t, "b@y.io", "Y")

	id, _ := f.tokens.Verify(a.Token, time.Now())
	scope, _ := tenant.FromIdentity(id)

	got, err := f.svc.Users(context.Background(), scope, []string{a.User.ID, b.User.ID, a.User.ID, ""})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only own-organization users, got %d", len(got))
	}
	if _, ok := got[b.User.ID]; ok {
		t.Fatalf("leaked user from another organization")
	}

	if _, err := f.svc.Me(context.Background(), scope); err != nil {
		t.Fatalf("me: %v", err)
	}
}

func TestMemoryThrottle_Window(t *testing.T) {
	th := NewMemoryThrottle(2, time.Minute)
	now := time.Unix(1000, 0)
	th.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = th.Failed(ctx, "k")
	_ = th.Failed(ctx, "k")
	if ok, _ := th.Allowed(ctx, "k"); ok {
		t.Fatalf("expected lockout after max attempts")
	}
	if ok, _ := th.Allowed(ctx, "other"); !ok {
		t.Fatalf("keys must be independent")
	}
	_ = th.Reset(ctx, "k")
	if ok, _ := th.Allowed(ctx, "k"); !ok {
		t.Fatalf("expected reset to clear lockout")
	}
}
