package hr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgtype"
)

// Membership is stored on both rows as TEXT[] sets: employees.team_ids and
// teams.member_ids. Link/Unlink update both inside one transaction after
// locking both rows.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	first_name       TEXT NOT NULL,
	last_name        TEXT NOT NULL,
	email            TEXT NOT NULL,
	phone            TEXT NOT NULL DEFAULT '',
	department       TEXT NOT NULL,
	position         TEXT NOT NULL,
	salary           DOUBLE PRECISION NOT NULL DEFAULT 0,
	hire_date        TIMESTAMPTZ,
	address_street   TEXT NOT NULL DEFAULT '',
	address_city     TEXT NOT NULL DEFAULT '',
	address_state    TEXT NOT NULL DEFAULT '',
	address_zip_code TEXT NOT NULL DEFAULT '',
	team_ids         TEXT[] NOT NULL DEFAULT '{}',
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS employees_org_email_idx ON employees (organization_id, email)`,
	`CREATE INDEX IF NOT EXISTS employees_org_created_idx ON employees (organization_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS teams (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	department      TEXT NOT NULL,
	team_lead_id    TEXT,
	member_ids      TEXT[] NOT NULL DEFAULT '{}',
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS teams_org_name_idx ON teams (organization_id, lower(name))`,
	`CREATE INDEX IF NOT EXISTS teams_org_created_idx ON teams (organization_id, created_at DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.ExecStatements(ctx, r.db, Schema)
}

const employeeColumns = `id, organization_id, first_name, last_name, email, phone, department, position, salary, hire_date,
address_street, address_city, address_state, address_zip_code, team_ids, is_active, created_at, updated_at`

const teamColumns = `id, organization_id, name, description, department, team_lead_id, member_ids, is_active, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanEmployee(row scanner) (Employee, error) {
	var (
		e        Employee
		hireDate sql.NullTime
	)
	m := pgtype.NewMap()
	if err := row.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.FirstName,
		&e.LastName,
		&e.Email,
		&e.Phone,
		&e.Department,
		&e.Position,
		&e.Salary,
		&hireDate,
		&e.Address.Street,
		&e.Address.City,
		&e.Address.State,
		&e.Address.ZipCode,
		m.SQLScanner(&e.TeamIDs),
		&e.IsActive,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	if hireDate.Valid {
		t := hireDate.Time
		e.HireDate = &t
	}
	if e.TeamIDs == nil {
		e.TeamIDs = []string{}
	}
	return e, nil
}

func scanTeam(row scanner) (Team, error) {
	var (
		t    Team
		lead sql.NullString
	)
	m := pgtype.NewMap()
	if err := row.Scan(
		&t.ID,
		&t.OrganizationID,
		&t.Name,
		&t.Description,
		&t.Department,
		&lead,
		m.SQLScanner(&t.MemberIDs),
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, err
	}
	t.TeamLeadID = lead.String
	if t.MemberIDs == nil {
		t.MemberIDs = []string{}
	}
	return t, nil
}

func mapWriteErr(err error) error {
	if utils.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresRepo) CreateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	q := `INSERT INTO employees (` + employeeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		scope.OrganizationID(),
		e.FirstName,
		e.LastName,
		e.Email,
		e.Phone,
		e.Department,
		e.Position,
		e.Salary,
		nullTime(e.HireDate),
		e.Address.Street,
		e.Address.City,
		e.Address.State,
		e.Address.ZipCode,
		e.TeamIDs,
		e.IsActive,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return mapWriteErr(err)
}

func (r *PostgresRepo) GetEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	return getEmployee(ctx, r.db, scope, id, false)
}

func getEmployee(ctx context.Context, db utils.DBTX, scope tenant.Scope, id string, forUpdate bool) (Employee, error) {
	q := `SELECT ` + employeeColumns + ` FROM employees WHERE organization_id = $1 AND id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanEmployee(db.QueryRowContext(ctx, q, scope.OrganizationID(), id))
}

func getTeam(ctx context.Context, db utils.DBTX, scope tenant.Scope, id string, forUpdate bool) (Team, error) {
	q := `SELECT ` + teamColumns + ` FROM teams WHERE organization_id = $1 AND id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanTeam(db.QueryRowContext(ctx, q, scope.OrganizationID(), id))
}

func (r *PostgresRepo) UpdateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	const q = `
UPDATE employees SET
	first_name = $3, last_name = $4, email = $5, phone = $6, department = $7, position = $8,
	salary = $9, hire_date = $10, address_street = $11, address_city = $12, address_state = $13,
	address_zip_code = $14, is_active = $15, updated_at = $16
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		scope.OrganizationID(),
		e.ID,
		e.FirstName,
		e.LastName,
		e.Email,
		e.Phone,
		e.Department,
		e.Position,
		e.Salary,
		nullTime(e.HireDate),
		e.Address.Street,
		e.Address.City,
		e.Address.State,
		e.Address.ZipCode,
		e.IsActive,
		e.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) DeleteEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	var out Employee
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		q := `DELETE FROM employees WHERE organization_id = $1 AND id = $2 RETURNING ` + employeeColumns
		e, err := scanEmployee(tx.QueryRowContext(ctx, q, scope.OrganizationID(), id))
		if err != nil {
			return err
		}
		const pullMember = `
UPDATE teams SET member_ids = array_remove(member_ids, $2)
WHERE organization_id = $1 AND $2 = ANY(member_ids)
`
		if _, err := tx.ExecContext(ctx, pullMember, scope.OrganizationID(), id); err != nil {
			return err
		}
		const clearLead = `
UPDATE teams SET team_lead_id = NULL
WHERE organization_id = $1 AND team_lead_id = $2
`
		if _, err := tx.ExecContext(ctx, clearLead, scope.OrganizationID(), id); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// likePattern escapes LIKE metacharacters so search input matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func employeePredicate(scope tenant.Scope, search, department string, searchFields []string) (string, []any) {
	clauses := []string{"organization_id = $1"}
	args := []any{scope.OrganizationID()}
	if department != "" {
		args = append(args, department)
		clauses = append(clauses, fmt.Sprintf("department = $%d", len(args)))
	}
	if search != "" {
		args = append(args, likePattern(search))
		n := len(args)
		ors := make([]string, 0, len(searchFields))
		for _, f := range searchFields {
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", f, n))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *PostgresRepo) ListEmployees(ctx context.Context, scope tenant.Scope, q EmployeeQuery) ([]Employee, int64, error) {
	where, args := employeePredicate(scope, q.Search, q.Department, []string{"first_name", "last_name", "email", "position"})

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM employees WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		employeeColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, offset(q.Page, q.Limit))...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectEmployees(rows)
	return out, total, err
}

func collectEmployees(rows *sql.Rows) ([]Employee, error) {
	defer rows.Close()
	out := make([]Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectTeams(rows *sql.Rows) ([]Team, error) {
	defer rows.Close()
	out := make([]Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	q := `INSERT INTO teams (` + teamColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, q,
		t.ID,
		scope.OrganizationID(),
		t.Name,
		t.Description,
		t.Department,
		nullString(t.TeamLeadID),
		t.MemberIDs,
		t.IsActive,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return mapWriteErr(err)
}

func (r *PostgresRepo) GetTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	return getTeam(ctx, r.db, scope, id, false)
}

func (r *PostgresRepo) UpdateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	const q = `
UPDATE teams SET name = $3, description = $4, department = $5, team_lead_id = $6, is_active = $7, updated_at = $8
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		scope.OrganizationID(),
		t.ID,
		t.Name,
		t.Description,
		t.Department,
		nullString(t.TeamLeadID),
		t.IsActive,
		t.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireRow(res)
}

func (r *PostgresRepo) DeleteTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	var out Team
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Members are locked before the team row, the same order Link and
		// Unlink use.
		if err := lockMembers(ctx, tx, scope, id); err != nil {
			return err
		}
		q := `DELETE FROM teams WHERE organization_id = $1 AND id = $2 RETURNING ` + teamColumns
		t, err := scanTeam(tx.QueryRowContext(ctx, q, scope.OrganizationID(), id))
		if err != nil {
			return err
		}
		const pullTeam = `
UPDATE employees SET team_ids = array_remove(team_ids, $2)
WHERE organization_id = $1 AND $2 = ANY(team_ids)
`
		if _, err := tx.ExecContext(ctx, pullTeam, scope.OrganizationID(), id); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func lockMembers(ctx context.Context, tx *sql.Tx, scope tenant.Scope, teamID string) error {
	const q = `
SELECT id FROM employees
WHERE organization_id = $1 AND $2 = ANY(team_ids)
ORDER BY id
FOR UPDATE
`
	rows, err := tx.QueryContext(ctx, q, scope.OrganizationID(), teamID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (r *PostgresRepo) ListTeams(ctx context.Context, scope tenant.Scope, q TeamQuery) ([]Team, int64, error) {
	where, args := employeePredicate(scope, q.Search, "", []string{"name"})

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM teams WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		teamColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, offset(q.Page, q.Limit))...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectTeams(rows)
	return out, total, err
}

const (
	linkEmployee = `
UPDATE employees SET team_ids = array_append(team_ids, $3), updated_at = $4
WHERE organization_id = $1 AND id = $2 AND NOT ($3 = ANY(team_ids))
`
	linkTeam = `
UPDATE teams SET member_ids = array_append(member_ids, $3), updated_at = $4
WHERE organization_id = $1 AND id = $2 AND NOT ($3 = ANY(member_ids))
`
	unlinkEmployee = `
UPDATE employees SET team_ids = array_remove(team_ids, $3), updated_at = $4
WHERE organization_id = $1 AND id = $2 AND $3 = ANY(team_ids)
`
	unlinkTeam = `
UPDATE teams SET member_ids = array_remove(member_ids, $3), updated_at = $4
WHERE organization_id = $1 AND id = $2 AND $3 = ANY(member_ids)
`
)

func (r *PostgresRepo) Link(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(ctx, scope, employeeID, teamID, at, linkEmployee, linkTeam)
}

func (r *PostgresRepo) Unlink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(ctx, scope, employeeID, teamID, at, unlinkEmployee, unlinkTeam)
}

func (r *PostgresRepo) relink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time, employeeSQL, teamSQL string) (AssignmentResult, error) {
	var out AssignmentResult
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock both rows in a fixed order (employee, then team) so concurrent
		// assignments cannot deadlock. A missing row aborts before any write.
		if _, err := getEmployee(ctx, tx, scope, employeeID, true); err != nil {
			return err
		}
		if _, err := getTeam(ctx, tx, scope, teamID, true); err != nil {
			return err
		}

		resE, err := tx.ExecContext(ctx, employeeSQL, scope.OrganizationID(), employeeID, teamID, at)
		if err != nil {
			return err
		}
		resT, err := tx.ExecContext(ctx, teamSQL, scope.OrganizationID(), teamID, employeeID, at)
		if err != nil {
			return err
		}
		nE, _ := resE.RowsAffected()
		nT, _ := resT.RowsAffected()

		e, err := getEmployee(ctx, tx, scope, employeeID, false)
		if err != nil {
			return err
		}
		t, err := getTeam(ctx, tx, scope, teamID, false)
		if err != nil {
			return err
		}
		out = AssignmentResult{Employee: e, Team: t, Changed: nE+nT > 0}
		return nil
	})
	return out, err
}

func (r *PostgresRepo) ListAssignments(ctx context.Context, scope tenant.Scope, search string) ([]Employee, []Team, error) {
	where, args := employeePredicate(scope, search, "", []string{"first_name", "last_name", "email"})
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE `+where+` ORDER BY first_name, last_name, id`, args...)
	if err != nil {
		return nil, nil, err
	}
	employees, err := collectEmployees(rows)
	if err != nil {
		return nil, nil, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE organization_id = $1 ORDER BY name, id`, scope.OrganizationID())
	if err != nil {
		return nil, nil, err
	}
	teams, err := collectTeams(rows)
	if err != nil {
		return nil, nil, err
	}
	return employees, teams, nil
}

func (r *PostgresRepo) Stats(ctx context.Context, scope tenant.Scope) (Stats, error) {
	var s Stats
	const qe = `SELECT count(*), COALESCE(sum(cardinality(team_ids)), 0) FROM employees WHERE organization_id = $1`
	if err := r.db.QueryRowContext(ctx, qe, scope.OrganizationID()).Scan(&s.Employees, &s.Assignments); err != nil {
		return Stats{}, err
	}
	const qt = `SELECT count(*) FROM teams WHERE organization_id = $1`
	if err := r.db.QueryRowContext(ctx, qt, scope.OrganizationID()).Scan(&s.Teams); err != nil {
		return Stats{}, err
	}
	return s, nil
}
