package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/utils"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS organizations_name_lower_idx ON organizations (lower(name))`,
	`CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations (id),
	name            TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	password_hash   TEXT NOT NULL,
	role            TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	last_login      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS users_org_idx ON users (organization_id)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.ExecStatements(ctx, r.db, Schema)
}

func (r *PostgresRepo) CreateOrganizationWithAdmin(ctx context.Context, org Organization, admin User) error {
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const insOrg = `
INSERT INTO organizations (id, name, email, created_at)
VALUES ($1, $2, $3, $4)
`
		if _, err := tx.ExecContext(ctx, insOrg, org.ID, org.Name, org.Email, org.CreatedAt); err != nil {
			return err
		}
		const insUser = `
INSERT INTO users (id, organization_id, name, email, password_hash, role, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
		_, err := tx.ExecContext(ctx, insUser,
			admin.ID,
			admin.OrganizationID,
			admin.Name,
			admin.Email,
			admin.PasswordHash,
			admin.Role,
			admin.IsActive,
			admin.CreatedAt,
			admin.UpdatedAt,
		)
		return err
	})
	if utils.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

const userColumns = `id, organization_id, name, email, password_hash, role, is_active, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.OrganizationID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (r *PostgresRepo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *PostgresRepo) GetUser(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE organization_id = $1 AND id = $2`
	return scanUser(r.db.QueryRowContext(ctx, q, scope.OrganizationID(), id))
}

func (r *PostgresRepo) ListUsers(ctx context.Context, scope tenant.Scope, ids []string) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE organization_id = $1 AND id = ANY($2)`
	rows, err := r.db.QueryContext(ctx, q, scope.OrganizationID(), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) TouchLastLogin(ctx context.Context, scope tenant.Scope, at time.Time) error {
	const q = `
UPDATE users SET last_login = $3, updated_at = $3
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, scope.OrganizationID(), scope.UserID(), at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
