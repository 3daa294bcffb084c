package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-platform/internal/audit"
	"hr-platform/internal/auth"
	"hr-platform/internal/metrics"
	"hr-platform/internal/rbac"
	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"
	"hr-platform/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = tenant.ErrNotFound
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Repository is the persistence contract for organizations and users.
//
// FindUserByEmail is the only lookup not bound to a tenant: it runs before any
// identity exists. Everything else takes a Scope.
type Repository interface {
	// CreateOrganizationWithAdmin stores both records or neither. Duplicate
	// user email or organization name/email yields ErrConflict.
	CreateOrganizationWithAdmin(ctx context.Context, org Organization, admin User) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, scope tenant.Scope, id string) (User, error)
	ListUsers(ctx context.Context, scope tenant.Scope, ids []string) ([]User, error)
	TouchLastLogin(ctx context.Context, scope tenant.Scope, at time.Time) error
}

// LoginObserver counts login outcomes.
type LoginObserver interface {
	Login(outcome string)
}

type Service struct {
	repo     Repository
	tokens   *auth.Authority
	hasher   auth.Hasher
	throttle Throttle
	audit    audit.Recorder
	obs      LoginObserver
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, tokens *auth.Authority, hasher auth.Hasher, throttle Throttle, rec audit.Recorder, obs LoginObserver) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		hasher:   hasher,
		throttle: throttle,
		audit:    rec,
		obs:      obs,
		clock:    time.Now,
	}
}

// Register creates a new organization with req's user as its admin and signs
// them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	name := strings.TrimSpace(req.Name)
	orgName := strings.TrimSpace(req.OrganizationName)
	if name == "" || orgName == "" || req.Password == "" {
		return Session{}, fmt.Errorf("%w: name, email, password and organization_name are required", ErrInvalidArgument)
	}
	email, err := utils.NormalizeEmail(req.Email)
	if err != nil {
		return Session{}, fmt.Errorf("%w: email", ErrInvalidArgument)
	}
	if len(req.Password) < minPasswordLen {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLen)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return Session{}, fmt.Errorf("%w: password too long", ErrInvalidArgument)
		}
		return Session{}, err
	}

	now := s.clock().UTC()
	org := Organization{
		ID:        uuid.NewString(),
		Name:      orgName,
		Email:     email,
		CreatedAt: now,
	}
	user := User{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           rbac.RoleAdmin,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateOrganizationWithAdmin(ctx, org, user); err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(now, auth.Claim{UserID: user.ID, OrganizationID: org.ID, Role: user.Role})
	if err != nil {
		return Session{}, err
	}

	scope, err := scopeOf(user)
	if err == nil {
		s.audit.Record(ctx, scope, audit.ActionLogin, audit.On(audit.ResourceUser, user.ID), audit.Meta{
			"user_email": user.Email,
			"registered": true,
		})
	}
	return Session{Token: token, User: user, Organization: org}, nil
}

// Login checks credentials, updates last-login and issues a token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrInvalidArgument)
	}
	email, err := utils.NormalizeEmail(req.Email)
	if err != nil {
		s.observe(metrics.LoginBadPassword)
		return Session{}, ErrInvalidCredentials
	}
	log := logger.From(ctx)

	allowed, err := s.throttle.Allowed(ctx, email)
	if err != nil {
		// Throttle backend down: let the attempt through rather than lock
		// everyone out.
		log.Warn("login throttle unavailable", "err", err)
		allowed = true
	}
	if !allowed {
		s.observe(metrics.LoginThrottled)
		return Session{}, ErrTooManyAttempts
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		s.fail(ctx, email)
		return Session{}, ErrInvalidCredentials
	case err != nil:
		return Session{}, err
	}
	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		s.fail(ctx, email)
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.observe(metrics.LoginDisabled)
		return Session{}, ErrAccountDisabled
	}

	scope, err := scopeOf(user)
	if err != nil {
		return Session{}, err
	}
	now := s.clock().UTC()
	if err := s.repo.TouchLastLogin(ctx, scope, now); err != nil {
		return Session{}, err
	}
	user.LastLogin = &now
	if err := s.throttle.Reset(ctx, email); err != nil {
		log.Warn("login throttle reset failed", "err", err)
	}

	token, err := s.tokens.Issue(now, auth.Claim{UserID: user.ID, OrganizationID: user.OrganizationID, Role: user.Role})
	if err != nil {
		return Session{}, err
	}
	s.observe(metrics.LoginSuccess)
	s.audit.Record(ctx, scope, audit.ActionLogin, audit.On(audit.ResourceUser, user.ID), audit.Meta{"user_email": user.Email})
	return Session{Token: token, User: user}, nil
}

// Logout records the logout of a verified caller. Tokens are stateless, so
// there is nothing to revoke; a zero scope is accepted and ignored.
func (s *Service) Logout(ctx context.Context, scope tenant.Scope) {
	if scope.IsZero() {
		return
	}
	s.audit.Record(ctx, scope, audit.ActionLogout, audit.On(audit.ResourceUser, scope.UserID()), audit.Meta{"user_id": scope.UserID()})
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, scope tenant.Scope) (User, error) {
	return s.repo.GetUser(ctx, scope, scope.UserID())
}

// Users returns the accounts among ids that belong to the scope's
// organization, keyed by id. Unknown or foreign ids are silently absent.
func (s *Service) Users(ctx context.Context, scope tenant.Scope, ids []string) (map[string]User, error) {
	out := map[string]User{}
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.repo.ListUsers(ctx, scope, dedupe(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, email string) {
	s.observe(metrics.LoginBadPassword)
	if err := s.throttle.Failed(ctx, email); err != nil {
		logger.From(ctx).Warn("login throttle update failed", "err", err)
	}
}

func (s *Service) observe(outcome string) {
	if s.obs != nil {
		s.obs.Login(outcome)
	}
}

// scopeOf derives the tenant scope of a freshly authenticated user. It goes
// through auth.Identity so that Scope keeps a single constructor.
func scopeOf(u User) (tenant.Scope, error) {
	return tenant.FromIdentity(auth.Identity{UserID: u.ID, OrganizationID: u.OrganizationID, Role: u.Role})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
