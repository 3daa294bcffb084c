package hr

import (
	"math"
	"strings"
	"time"
)

// Employee is a tenant-scoped personnel record.
//
// TeamIDs and Team.MemberIDs are two sides of one relationship; they are only
// ever changed together (see Service.Assign / Service.Unassign).
type Employee struct {
	ID             string     `json:"id" bson:"_id"`
	OrganizationID string     `json:"organization_id" bson:"organization_id"`
	FirstName      string     `json:"first_name" bson:"first_name"`
	LastName       string     `json:"last_name" bson:"last_name"`
	Email          string     `json:"email" bson:"email"`
	Phone          string     `json:"phone,omitempty" bson:"phone,omitempty"`
	Department     string     `json:"department" bson:"department"`
	Position       string     `json:"position" bson:"position"`
	Salary         float64    `json:"salary" bson:"salary"`
	HireDate       *time.Time `json:"hire_date,omitempty" bson:"hire_date,omitempty"`
	Address        Address    `json:"address" bson:"address"`
	TeamIDs        []string   `json:"team_ids" bson:"team_ids"`
	IsActive       bool       `json:"is_active" bson:"is_active"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Employee) InTeam(teamID string) bool { return contains(e.TeamIDs, teamID) }

type Address struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty" bson:"zip_code,omitempty"`
}

// EmployeeInput is the client-editable part of an Employee. It has no
// organization field: the organization always comes from the caller's scope.
type EmployeeInput struct {
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Department string     `json:"department"`
	Position   string     `json:"position"`
	Salary     float64    `json:"salary"`
	HireDate   *time.Time `json:"hire_date"`
	Address    Address    `json:"address"`
	IsActive   *bool      `json:"is_active"`
}

// Team groups employees. TeamLeadID, when set, names an employee of the same
// organization.
type Team struct {
	ID             string    `json:"id" bson:"_id"`
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Name           string    `json:"name" bson:"name"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
	Department     string    `json:"department" bson:"department"`
	TeamLeadID     string    `json:"team_lead_id,omitempty" bson:"team_lead_id,omitempty"`
	MemberIDs      []string  `json:"member_ids" bson:"member_ids"`
	IsActive       bool      `json:"is_active" bson:"is_active"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

func (t Team) HasMember(employeeID string) bool { return contains(t.MemberIDs, employeeID) }

// TeamInput is the client-editable part of a Team. Membership is not
// editable here; it changes only through assignments.
type TeamInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Department  string `json:"department"`
	TeamLeadID  string `json:"team_lead_id"`
	IsActive    *bool  `json:"is_active"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// maxPage keeps (page-1)*limit within int for any accepted limit.
	maxPage = math.MaxInt / MaxPageLimit
)

type EmployeeQuery struct {
	Search     string
	Department string
	Page       int
	Limit      int
}

type TeamQuery struct {
	Search string
	Page   int
	Limit  int
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func offset(page, limit int) int { return (page - 1) * limit }

func totalPages(total int64, limit int) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type EmployeePage struct {
	Employees  []Employee `json:"employees"`
	Pagination Pagination `json:"pagination"`
}

type TeamPage struct {
	Teams      []Team     `json:"teams"`
	Pagination Pagination `json:"pagination"`
}

// AssignmentAction is the verb of an assignment request.
type AssignmentAction string

const (
	AssignmentAssign AssignmentAction = "assign"
	AssignmentRemove AssignmentAction = "remove"
)

// AssignmentResult is the state of both sides after a link change. Changed is
// false when the request was already satisfied (idempotent repeat, or removal
// of a link that did not exist).
type AssignmentResult struct {
	Employee Employee `json:"employee"`
	Team     Team     `json:"team"`
	Changed  bool     `json:"changed"`
}

// Assignments is the organization's employee/team matrix.
type Assignments struct {
	Employees []Employee `json:"employees"`
	Teams     []Team     `json:"teams"`
}

// Stats are organization-wide counts for the dashboard.
type Stats struct {
	Employees   int64
	Teams       int64
	Assignments int64
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func without(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
