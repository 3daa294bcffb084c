// Package tenant enforces organization isolation.
//
// A Scope can only be obtained from a verified auth.Identity. Every data
// access in accounts, hr, audit and reporting takes a Scope and filters by
// its organization, so a record owned by another organization is
// indistinguishable from a missing one.
package tenant

import (
	"context"
	"errors"

	"hr-platform/internal/auth"
)

var (
	// ErrNotFound is returned for absent records AND for records owned by
	// another organization. Callers must not distinguish the two.
	ErrNotFound = errors.New("not found")

	ErrNoTenant = errors.New("tenant: no verified organization")
)

// OrganizationField is the document field every tenant-owned record carries.
const OrganizationField = "organization_id"

// Scope binds data operations to one organization on behalf of one user.
type Scope struct {
	orgID  string
	userID string
	role   string
}

// FromIdentity derives a scope from a verified identity.
func FromIdentity(id auth.Identity) (Scope, error) {
	if id.OrganizationID == "" || id.UserID == "" {
		return Scope{}, ErrNoTenant
	}
	return Scope{orgID: id.OrganizationID, userID: id.UserID, role: id.Role}, nil
}

// FromContext derives a scope from the identity injected by auth middleware.
func FromContext(ctx context.Context) (Scope, error) {
	id, err := auth.IdentityFrom(ctx)
	if err != nil {
		return Scope{}, ErrNoTenant
	}
	return FromIdentity(id)
}

func (s Scope) OrganizationID() string { return s.orgID }
func (s Scope) UserID() string         { return s.userID }
func (s Scope) Role() string           { return s.role }
func (s Scope) IsZero() bool           { return s.orgID == "" }

// Owns reports whether a record's organization matches this scope.
func (s Scope) Owns(organizationID string) bool {
	return !s.IsZero() && organizationID == s.orgID
}

// Filter is a document-store filter predicate.
type Filter map[string]any

// Bind returns a copy of f constrained to the scope's organization. Any
// organization constraint already present in f (for example one copied from
// client input) is overwritten.
func (s Scope) Bind(f Filter) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[OrganizationField] = s.orgID
	return out
}
