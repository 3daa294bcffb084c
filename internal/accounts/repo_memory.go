package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"hr-platform/internal/tenant"
)

// MemoryRepo is an in-memory repository for tests and the memory store driver.
// Reads through a scope never return another organization's users.
type MemoryRepo struct {
	mu    sync.Mutex
	orgs  map[string]Organization
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orgs: map[string]Organization{}, users: map[string]User{}}
}

func (r *MemoryRepo) CreateOrganizationWithAdmin(ctx context.Context, org Organization, admin User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		if strings.EqualFold(o.Name, org.Name) || o.Email == org.Email {
			return ErrConflict
		}
	}
	for _, u := range r.users {
		if u.Email == admin.Email {
			return ErrConflict
		}
	}
	r.orgs[org.ID] = org
	r.users[admin.ID] = admin
	return nil
}

// PutUser inserts or replaces a user. Used to seed fixtures.
func (r *MemoryRepo) PutUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *MemoryRepo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) GetUser(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !scope.Owns(u.OrganizationID) {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) ListUsers(ctx context.Context, scope tenant.Scope, ids []string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok && scope.Owns(u.OrganizationID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryRepo) TouchLastLogin(ctx context.Context, scope tenant.Scope, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[scope.UserID()]
	if !ok || !scope.Owns(u.OrganizationID) {
		return ErrNotFound
	}
	u.LastLogin = &at
	u.UpdatedAt = at
	r.users[u.ID] = u
	return nil
}
