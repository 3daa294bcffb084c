package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/utils"
)

// Schema creates the audit table. Rows are INSERT-only; nothing in this
// service issues UPDATE or DELETE against it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_records (
	id              TEXT PRIMARY KEY,
	timestamp       TIMESTAMPTZ NOT NULL,
	user_id         TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	action          TEXT NOT NULL,
	resource_type   TEXT,
	resource_id     TEXT,
	meta            JSONB NOT NULL DEFAULT '{}'::jsonb
)`,
	`CREATE INDEX IF NOT EXISTS audit_records_org_ts_idx ON audit_records (organization_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_records_user_ts_idx ON audit_records (user_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_records_ts_idx ON audit_records (timestamp DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.ExecStatements(ctx, r.db, Schema)
}

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	const q = `
INSERT INTO audit_records (id, timestamp, user_id, organization_id, action, resource_type, resource_id, meta)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err = r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Timestamp,
		rec.UserID,
		rec.OrganizationID,
		string(rec.Action),
		nullString(string(rec.ResourceType)),
		nullString(rec.ResourceID),
		meta,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, scope tenant.Scope, q Query) ([]Record, int64, error) {
	where, args := listPredicate(scope.OrganizationID(), q)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, q.Limit, q.offset())
	query := fmt.Sprintf(`
SELECT id, timestamp, user_id, organization_id, action, resource_type, resource_id, meta
FROM audit_records
WHERE %s
ORDER BY timestamp DESC, id
LIMIT $%d OFFSET $%d
`, where, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Record, 0, q.Limit)
	for rows.Next() {
		var (
			rec          Record
			action       string
			resourceType sql.NullString
			resourceID   sql.NullString
			meta         []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserID, &rec.OrganizationID, &action, &resourceType, &resourceID, &meta); err != nil {
			return nil, 0, err
		}
		rec.Action = Action(action)
		rec.ResourceType = ResourceType(resourceType.String)
		rec.ResourceID = resourceID.String
		rec.Meta = Meta{}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Meta); err != nil {
				return nil, 0, fmt.Errorf("decode meta for %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// listPredicate builds the WHERE clause. organization_id is always $1.
func listPredicate(organizationID string, q Query) (string, []any) {
	clauses := []string{"organization_id = $1"}
	args := []any{organizationID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if q.Action != "" {
		add("action = $%d", string(q.Action))
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if !q.From.IsZero() {
		add("timestamp >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("timestamp <= $%d", q.To)
	}
	return strings.Join(clauses, " AND "), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
