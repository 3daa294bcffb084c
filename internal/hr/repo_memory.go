package hr

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hr-platform/internal/tenant"
)

// MemoryRepo keeps employees and teams in maps guarded by one mutex, so both
// sides of an assignment change under the same lock.
type MemoryRepo struct {
	mu        sync.Mutex
	employees map[string]Employee
	teams     map[string]Team
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{employees: map[string]Employee{}, teams: map[string]Team{}}
}

func cloneEmployee(e Employee) Employee {
	e.TeamIDs = append([]string{}, e.TeamIDs...)
	return e
}

func cloneTeam(t Team) Team {
	t.MemberIDs = append([]string{}, t.MemberIDs...)
	return t
}

func (r *MemoryRepo) employeeLocked(scope tenant.Scope, id string) (Employee, bool) {
	e, ok := r.employees[id]
	if !ok || !scope.Owns(e.OrganizationID) {
		return Employee{}, false
	}
	return e, true
}

func (r *MemoryRepo) teamLocked(scope tenant.Scope, id string) (Team, bool) {
	t, ok := r.teams[id]
	if !ok || !scope.Owns(t.OrganizationID) {
		return Team{}, false
	}
	return t, true
}

func (r *MemoryRepo) emailTakenLocked(scope tenant.Scope, email, exceptID string) bool {
	for _, e := range r.employees {
		if e.ID != exceptID && scope.Owns(e.OrganizationID) && e.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) teamNameTakenLocked(scope tenant.Scope, name, exceptID string) bool {
	for _, t := range r.teams {
		if t.ID != exceptID && scope.Owns(t.OrganizationID) && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTakenLocked(scope, e.Email, "") {
		return ErrConflict
	}
	e.OrganizationID = scope.OrganizationID()
	r.employees[e.ID] = cloneEmployee(e)
	return nil
}

func (r *MemoryRepo) GetEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employeeLocked(scope, id)
	if !ok {
		return Employee{}, ErrNotFound
	}
	return cloneEmployee(e), nil
}

func (r *MemoryRepo) UpdateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.employeeLocked(scope, e.ID)
	if !ok {
		return ErrNotFound
	}
	if r.emailTakenLocked(scope, e.Email, e.ID) {
		return ErrConflict
	}
	e.OrganizationID = cur.OrganizationID
	e.TeamIDs = cur.TeamIDs
	e.CreatedAt = cur.CreatedAt
	r.employees[e.ID] = cloneEmployee(e)
	return nil
}

func (r *MemoryRepo) DeleteEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employeeLocked(scope, id)
	if !ok {
		return Employee{}, ErrNotFound
	}
	delete(r.employees, id)
	for tid, t := range r.teams {
		if !scope.Owns(t.OrganizationID) {
			continue
		}
		if t.HasMember(id) || t.TeamLeadID == id {
			t.MemberIDs = without(t.MemberIDs, id)
			if t.TeamLeadID == id {
				t.TeamLeadID = ""
			}
			r.teams[tid] = t
		}
	}
	return e, nil
}

func (r *MemoryRepo) ListEmployees(ctx context.Context, scope tenant.Scope, q EmployeeQuery) ([]Employee, int64, error) {
	r.mu.Lock()
	matched := make([]Employee, 0)
	for _, e := range r.employees {
		if !scope.Owns(e.OrganizationID) {
			continue
		}
		if q.Department != "" && e.Department != q.Department {
			continue
		}
		if q.Search != "" && !containsFold(q.Search, e.FirstName, e.LastName, e.Email, e.Position) {
			continue
		}
		matched = append(matched, cloneEmployee(e))
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return pageOf(matched, q.Page, q.Limit), int64(len(matched)), nil
}

func (r *MemoryRepo) CreateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.teamNameTakenLocked(scope, t.Name, "") {
		return ErrConflict
	}
	t.OrganizationID = scope.OrganizationID()
	r.teams[t.ID] = cloneTeam(t)
	return nil
}

func (r *MemoryRepo) GetTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teamLocked(scope, id)
	if !ok {
		return Team{}, ErrNotFound
	}
	return cloneTeam(t), nil
}

func (r *MemoryRepo) UpdateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.teamLocked(scope, t.ID)
	if !ok {
		return ErrNotFound
	}
	if r.teamNameTakenLocked(scope, t.Name, t.ID) {
		return ErrConflict
	}
	t.OrganizationID = cur.OrganizationID
	t.MemberIDs = cur.MemberIDs
	t.CreatedAt = cur.CreatedAt
	r.teams[t.ID] = cloneTeam(t)
	return nil
}

func (r *MemoryRepo) DeleteTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teamLocked(scope, id)
	if !ok {
		return Team{}, ErrNotFound
	}
	delete(r.teams, id)
	for eid, e := range r.employees {
		if scope.Owns(e.OrganizationID) && e.InTeam(id) {
			e.TeamIDs = without(e.TeamIDs, id)
			r.employees[eid] = e
		}
	}
	return t, nil
}

func (r *MemoryRepo) ListTeams(ctx context.Context, scope tenant.Scope, q TeamQuery) ([]Team, int64, error) {
	r.mu.Lock()
	matched := make([]Team, 0)
	for _, t := range r.teams {
		if !scope.Owns(t.OrganizationID) {
			continue
		}
		if q.Search != "" && !containsFold(q.Search, t.Name) {
			continue
		}
		matched = append(matched, cloneTeam(t))
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return pageOf(matched, q.Page, q.Limit), int64(len(matched)), nil
}

func (r *MemoryRepo) Link(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(scope, employeeID, teamID, at, true)
}

func (r *MemoryRepo) Unlink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(scope, employeeID, teamID, at, false)
}

func (r *MemoryRepo) relink(scope tenant.Scope, employeeID, teamID string, at time.Time, link bool) (AssignmentResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Both sides are checked before either is written.
	e, ok := r.employeeLocked(scope, employeeID)
	if !ok {
		return AssignmentResult{}, ErrNotFound
	}
	t, ok := r.teamLocked(scope, teamID)
	if !ok {
		return AssignmentResult{}, ErrNotFound
	}

	changed := false
	if link {
		if !e.InTeam(teamID) {
			e.TeamIDs = append(append([]string{}, e.TeamIDs...), teamID)
			changed = true
		}
		if !t.HasMember(employeeID) {
			t.MemberIDs = append(append([]string{}, t.MemberIDs...), employeeID)
			changed = true
		}
	} else {
		if e.InTeam(teamID) {
			e.TeamIDs = without(e.TeamIDs, teamID)
			changed = true
		}
		if t.HasMember(employeeID) {
			t.MemberIDs = without(t.MemberIDs, employeeID)
			changed = true
		}
	}
	if changed {
		e.UpdatedAt = at
		t.UpdatedAt = at
		r.employees[e.ID] = e
		r.teams[t.ID] = t
	}
	return AssignmentResult{Employee: cloneEmployee(e), Team: cloneTeam(t), Changed: changed}, nil
}

func (r *MemoryRepo) ListAssignments(ctx context.Context, scope tenant.Scope, search string) ([]Employee, []Team, error) {
	r.mu.Lock()
	employees := make([]Employee, 0)
	for _, e := range r.employees {
		if !scope.Owns(e.OrganizationID) {
			continue
		}
		if search != "" && !containsFold(search, e.FirstName, e.LastName, e.Email) {
			continue
		}
		employees = append(employees, cloneEmployee(e))
	}
	teams := make([]Team, 0)
	for _, t := range r.teams {
		if scope.Owns(t.OrganizationID) {
			teams = append(teams, cloneTeam(t))
		}
	}
	r.mu.Unlock()

	sort.SliceStable(employees, func(i, j int) bool {
		if employees[i].FirstName != employees[j].FirstName {
			return employees[i].FirstName < employees[j].FirstName
		}
		if employees[i].LastName != employees[j].LastName {
			return employees[i].LastName < employees[j].LastName
		}
		return employees[i].ID < employees[j].ID
	})
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Name != teams[j].Name {
			return teams[i].Name < teams[j].Name
		}
		return teams[i].ID < teams[j].ID
	})
	return employees, teams, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, scope tenant.Scope) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Stats
	for _, e := range r.employees {
		if scope.Owns(e.OrganizationID) {
			s.Employees++
			s.Assignments += int64(len(e.TeamIDs))
		}
	}
	for _, t := range r.teams {
		if scope.Owns(t.OrganizationID) {
			s.Teams++
		}
	}
	return s, nil
}

func containsFold(needle string, fields ...string) bool {
	n := strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), n) {
			return true
		}
	}
	return false
}

func pageOf[T any](rows []T, page, limit int) []T {
	start := offset(page, limit)
	if start < 0 || start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) || end < start {
		end = len(rows)
	}
	return rows[start:end]
}
