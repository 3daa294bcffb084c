package audit

import (
	"fmt"
	"math"
	"time"
)

// Record is an immutable, append-only audit log entry.
//
// Invariants:
// - Records are never updated or deleted by this package.
// - OrganizationID and UserID always come from the verified identity that
//   performed the action.
type Record struct {
	ID             string       `json:"id" bson:"_id" db:"id"`
	Timestamp      time.Time    `json:"timestamp" bson:"timestamp" db:"timestamp"`
	UserID         string       `json:"user_id" bson:"user_id" db:"user_id"`
	OrganizationID string       `json:"organization_id" bson:"organization_id" db:"organization_id"`
	Action         Action       `json:"action" bson:"action" db:"action"`
	ResourceType   ResourceType `json:"resource_type,omitempty" bson:"resource_type,omitempty" db:"resource_type"`
	ResourceID     string       `json:"resource_id,omitempty" bson:"resource_id,omitempty" db:"resource_id"`
	Meta           Meta         `json:"meta" bson:"meta" db:"meta"`
}

// Action is the closed set of auditable action kinds. New kinds must be added
// here; Record drops anything else.
type Action string

const (
	ActionLogin            Action = "login"
	ActionLogout           Action = "logout"
	ActionEmployeeCreate   Action = "employee_create"
	ActionEmployeeUpdate   Action = "employee_update"
	ActionEmployeeDelete   Action = "employee_delete"
	ActionTeamCreate       Action = "team_create"
	ActionTeamUpdate       Action = "team_update"
	ActionTeamDelete       Action = "team_delete"
	ActionAssignmentAdd    Action = "assignment_add"
	ActionAssignmentRemove Action = "assignment_remove"
)

var allActions = []Action{
	ActionLogin, ActionLogout,
	ActionEmployeeCreate, ActionEmployeeUpdate, ActionEmployeeDelete,
	ActionTeamCreate, ActionTeamUpdate, ActionTeamDelete,
	ActionAssignmentAdd, ActionAssignmentRemove,
}

// Actions returns every known action kind.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction converts untrusted input (query strings, stored rows) into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown audit action %q", ErrInvalidArgument, s)
	}
	return a, nil
}

// ResourceType names the kind of record an action touched. The zero value
// means the action has no target resource.
type ResourceType string

const (
	ResourceNone       ResourceType = ""
	ResourceUser       ResourceType = "user"
	ResourceEmployee   ResourceType = "employee"
	ResourceTeam       ResourceType = "team"
	ResourceAssignment ResourceType = "assignment"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceNone, ResourceUser, ResourceEmployee, ResourceTeam, ResourceAssignment:
		return true
	default:
		return false
	}
}

// Resource identifies the target of an action.
type Resource struct {
	Type ResourceType
	ID   string
}

// On is shorthand for Resource{Type: t, ID: id}.
func On(t ResourceType, id string) Resource { return Resource{Type: t, ID: id} }

// NoResource is used for actions such as logout that have no target.
var NoResource = Resource{}

func (r Resource) valid() bool {
	if !r.Type.Valid() {
		return false
	}
	// An id without a type cannot be interpreted.
	return r.Type != ResourceNone || r.ID == ""
}

// Meta is free-form detail attached to a record.
type Meta map[string]any

func (m Meta) clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// maxPage keeps (Page-1)*Limit within int for any accepted limit.
	maxPage = math.MaxInt / MaxPageLimit
)

// Query filters an organization's audit trail. The organization itself comes
// from the scope passed alongside, never from the query.
type Query struct {
	Action Action
	UserID string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

func (q Query) offset() int { return (q.Page - 1) * q.Limit }

// Page is one page of records, newest first.
type Page struct {
	Records    []Record `json:"logs"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	Total      int64    `json:"total"`
	TotalPages int      `json:"total_pages"`
}
