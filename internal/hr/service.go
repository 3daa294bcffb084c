package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-platform/internal/audit"
	"hr-platform/internal/tenant"

	"github.com/google/uuid"
)

var (
	// ErrNotFound covers both absent records and records of another
	// organization.
	ErrNotFound        = tenant.ErrNotFound
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("already exists")
)

// Repository is the persistence contract for employees and teams.
//
// Every method takes the caller's scope and must filter by its organization.
// Link/Unlink change both sides of the employee/team relationship as one unit:
// either both sides are written or neither is.
type Repository interface {
	CreateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error
	GetEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error)
	// UpdateEmployee writes editable fields only; team membership is untouched.
	UpdateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error
	// DeleteEmployee also removes the employee from every team of the
	// organization and clears it as team lead.
	DeleteEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error)
	ListEmployees(ctx context.Context, scope tenant.Scope, q EmployeeQuery) ([]Employee, int64, error)

	CreateTeam(ctx context.Context, scope tenant.Scope, t Team) error
	GetTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error)
	// UpdateTeam writes editable fields only; membership is untouched.
	UpdateTeam(ctx context.Context, scope tenant.Scope, t Team) error
	// DeleteTeam also removes the team from every employee of the organization.
	DeleteTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error)
	ListTeams(ctx context.Context, scope tenant.Scope, q TeamQuery) ([]Team, int64, error)

	Link(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error)
	Unlink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error)

	// ListAssignments returns matching employees ordered by first then last
	// name, and every team of the organization ordered by name.
	ListAssignments(ctx context.Context, scope tenant.Scope, search string) ([]Employee, []Team, error)
	Stats(ctx context.Context, scope tenant.Scope) (Stats, error)
}

// Service applies the scope -> validate -> mutate -> audit sequence to every
// HR operation. Audit runs only after the store reports success.
type Service struct {
	repo  Repository
	audit audit.Recorder
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, rec audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec, clock: time.Now}
}

func requireScope(scope tenant.Scope) error {
	if scope.IsZero() {
		return tenant.ErrNoTenant
	}
	return nil
}

func (s *Service) CreateEmployee(ctx context.Context, scope tenant.Scope, in EmployeeInput) (Employee, error) {
	if err := requireScope(scope); err != nil {
		return Employee{}, err
	}
	in, err := validateEmployee(in)
	if err != nil {
		return Employee{}, err
	}

	now := s.clock().UTC()
	e := Employee{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID(),
		TeamIDs:        []string{},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyEmployeeInput(&e, in)

	if err := s.repo.CreateEmployee(ctx, scope, e); err != nil {
		return Employee{}, err
	}
	s.audit.Record(ctx, scope, audit.ActionEmployeeCreate, audit.On(audit.ResourceEmployee, e.ID), audit.Meta{"employee": e.FullName()})
	return e, nil
}

func (s *Service) GetEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	if err := requireScope(scope); err != nil {
		return Employee{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Employee{}, ErrNotFound
	}
	return s.repo.GetEmployee(ctx, scope, id)
}

// UpdateEmployee replaces the editable fields of an existing employee.
func (s *Service) UpdateEmployee(ctx context.Context, scope tenant.Scope, id string, in EmployeeInput) (Employee, error) {
	if err := requireScope(scope); err != nil {
		return Employee{}, err
	}
	in, err := validateEmployee(in)
	if err != nil {
		return Employee{}, err
	}
	e, err := s.GetEmployee(ctx, scope, id)
	if err != nil {
		return Employee{}, err
	}
	applyEmployeeInput(&e, in)
	e.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateEmployee(ctx, scope, e); err != nil {
		return Employee{}, err
	}
	s.audit.Record(ctx, scope, audit.ActionEmployeeUpdate, audit.On(audit.ResourceEmployee, e.ID), audit.Meta{"employee": e.FullName()})
	return e, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, scope tenant.Scope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	e, err := s.repo.DeleteEmployee(ctx, scope, id)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, scope, audit.ActionEmployeeDelete, audit.On(audit.ResourceEmployee, e.ID), audit.Meta{"employee": e.FullName()})
	return nil
}

func (s *Service) ListEmployees(ctx context.Context, scope tenant.Scope, q EmployeeQuery) (EmployeePage, error) {
	if err := requireScope(scope); err != nil {
		return EmployeePage{}, err
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Department = strings.TrimSpace(q.Department)
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)

	rows, total, err := s.repo.ListEmployees(ctx, scope, q)
	if err != nil {
		return EmployeePage{}, err
	}
	if rows == nil {
		rows = []Employee{}
	}
	return EmployeePage{
		Employees:  rows,
		Pagination: Pagination{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: totalPages(total, q.Limit)},
	}, nil
}

func (s *Service) CreateTeam(ctx context.Context, scope tenant.Scope, in TeamInput) (Team, error) {
	if err := requireScope(scope); err != nil {
		return Team{}, err
	}
	in, err := validateTeam(in)
	if err != nil {
		return Team{}, err
	}
	if err := s.checkTeamLead(ctx, scope, in.TeamLeadID); err != nil {
		return Team{}, err
	}

	now := s.clock().UTC()
	t := Team{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID(),
		MemberIDs:      []string{},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyTeamInput(&t, in)

	if err := s.repo.CreateTeam(ctx, scope, t); err != nil {
		return Team{}, err
	}
	s.audit.Record(ctx, scope, audit.ActionTeamCreate, audit.On(audit.ResourceTeam, t.ID), audit.Meta{"team": t.Name})
	return t, nil
}

func (s *Service) GetTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	if err := requireScope(scope); err != nil {
		return Team{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Team{}, ErrNotFound
	}
	return s.repo.GetTeam(ctx, scope, id)
}

func (s *Service) UpdateTeam(ctx context.Context, scope tenant.Scope, id string, in TeamInput) (Team, error) {
	if err := requireScope(scope); err != nil {
		return Team{}, err
	}
	in, err := validateTeam(in)
	if err != nil {
		return Team{}, err
	}
	t, err := s.GetTeam(ctx, scope, id)
	if err != nil {
		return Team{}, err
	}
	if err := s.checkTeamLead(ctx, scope, in.TeamLeadID); err != nil {
		return Team{}, err
	}
	applyTeamInput(&t, in)
	t.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateTeam(ctx, scope, t); err != nil {
		return Team{}, err
	}
	s.audit.Record(ctx, scope, audit.ActionTeamUpdate, audit.On(audit.ResourceTeam, t.ID), audit.Meta{"team": t.Name})
	return t, nil
}

func (s *Service) DeleteTeam(ctx context.Context, scope tenant.Scope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	t, err := s.repo.DeleteTeam(ctx, scope, id)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, scope, audit.ActionTeamDelete, audit.On(audit.ResourceTeam, t.ID), audit.Meta{"team": t.Name})
	return nil
}

func (s *Service) ListTeams(ctx context.Context, scope tenant.Scope, q TeamQuery) (TeamPage, error) {
	if err := requireScope(scope); err != nil {
		return TeamPage{}, err
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)

	rows, total, err := s.repo.ListTeams(ctx, scope, q)
	if err != nil {
		return TeamPage{}, err
	}
	if rows == nil {
		rows = []Team{}
	}
	return TeamPage{
		Teams:      rows,
		Pagination: Pagination{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: totalPages(total, q.Limit)},
	}, nil
}

// Assign links an employee and a team of the caller's organization. Repeating
// it is a no-op.
func (s *Service) Assign(ctx context.Context, scope tenant.Scope, employeeID, teamID string) (AssignmentResult, error) {
	return s.changeAssignment(ctx, scope, AssignmentAssign, employeeID, teamID)
}

// Unassign removes the link. Removing a link that does not exist succeeds
// without changes; a missing employee or team is ErrNotFound.
func (s *Service) Unassign(ctx context.Context, scope tenant.Scope, employeeID, teamID string) (AssignmentResult, error) {
	return s.changeAssignment(ctx, scope, AssignmentRemove, employeeID, teamID)
}

// ChangeAssignment dispatches on the request verb.
func (s *Service) ChangeAssignment(ctx context.Context, scope tenant.Scope, action AssignmentAction, employeeID, teamID string) (AssignmentResult, error) {
	switch action {
	case AssignmentAssign, AssignmentRemove:
		return s.changeAssignment(ctx, scope, action, employeeID, teamID)
	default:
		return AssignmentResult{}, fmt.Errorf("%w: action must be %q or %q", ErrInvalidArgument, AssignmentAssign, AssignmentRemove)
	}
}

func (s *Service) changeAssignment(ctx context.Context, scope tenant.Scope, action AssignmentAction, employeeID, teamID string) (AssignmentResult, error) {
	if err := requireScope(scope); err != nil {
		return AssignmentResult{}, err
	}
	employeeID = strings.TrimSpace(employeeID)
	teamID = strings.TrimSpace(teamID)
	if employeeID == "" || teamID == "" {
		return AssignmentResult{}, fmt.Errorf("%w: employee_id and team_id are required", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	var (
		res  AssignmentResult
		err  error
		kind audit.Action
	)
	if action == AssignmentAssign {
		res, err = s.repo.Link(ctx, scope, employeeID, teamID, now)
		kind = audit.ActionAssignmentAdd
	} else {
		res, err = s.repo.Unlink(ctx, scope, employeeID, teamID, now)
		kind = audit.ActionAssignmentRemove
	}
	if err != nil {
		return AssignmentResult{}, err
	}
	if res.Changed {
		s.audit.Record(ctx, scope, kind, audit.On(audit.ResourceAssignment, employeeID), audit.Meta{
			"employee":    res.Employee.FullName(),
			"team":        res.Team.Name,
			"employee_id": employeeID,
			"team_id":     teamID,
		})
	}
	return res, nil
}

func (s *Service) ListAssignments(ctx context.Context, scope tenant.Scope, search string) (Assignments, error) {
	if err := requireScope(scope); err != nil {
		return Assignments{}, err
	}
	employees, teams, err := s.repo.ListAssignments(ctx, scope, strings.TrimSpace(search))
	if err != nil {
		return Assignments{}, err
	}
	if employees == nil {
		employees = []Employee{}
	}
	if teams == nil {
		teams = []Team{}
	}
	return Assignments{Employees: employees, Teams: teams}, nil
}

// Stats is used by reporting.
func (s *Service) Stats(ctx context.Context, scope tenant.Scope) (Stats, error) {
	if err := requireScope(scope); err != nil {
		return Stats{}, err
	}
	return s.repo.Stats(ctx, scope)
}

func (s *Service) checkTeamLead(ctx context.Context, scope tenant.Scope, leadID string) error {
	if leadID == "" {
		return nil
	}
	if _, err := s.repo.GetEmployee(ctx, scope, leadID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("team lead: %w", ErrNotFound)
		}
		return err
	}
	return nil
}

func applyEmployeeInput(e *Employee, in EmployeeInput) {
	e.FirstName = in.FirstName
	e.LastName = in.LastName
	e.Email = in.Email
	e.Phone = in.Phone
	e.Department = in.Department
	e.Position = in.Position
	e.Salary = in.Salary
	e.HireDate = in.HireDate
	e.Address = in.Address
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
}

func applyTeamInput(t *Team, in TeamInput) {
	t.Name = in.Name
	t.Description = in.Description
	t.Department = in.Department
	t.TeamLeadID = in.TeamLeadID
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
}
