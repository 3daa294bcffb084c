package hr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingConn is a database/sql connection that logs every statement and
// answers queries with no rows.
type recordingConn struct {
	mu    *sync.Mutex
	stmts *[]string
}

func (c recordingConn) log(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.stmts = append(*c.stmts, strings.Join(strings.Fields(q), " "))
}

func (c recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c recordingConn) Close() error              { return nil }
func (c recordingConn) Begin() (driver.Tx, error) { return recordingTx{}, nil }

func (c recordingConn) QueryContext(_ context.Context, q string, _ []driver.NamedValue) (driver.Rows, error) {
	c.log(q)
	return emptyRows{}, nil
}

func (c recordingConn) ExecContext(_ context.Context, q string, _ []driver.NamedValue) (driver.Result, error) {
	c.log(q)
	return driver.RowsAffected(0), nil
}

type recordingTx struct{}

func (recordingTx) Commit() error   { return nil }
func (recordingTx) Rollback() error { return nil }

type emptyRows struct{}

func (emptyRows) Columns() []string         { return []string{"id"} }
func (emptyRows) Close() error              { return nil }
func (emptyRows) Next([]driver.Value) error { return io.EOF }

type recordingConnector struct{ conn recordingConn }

func (r recordingConnector) Connect(context.Context) (driver.Conn, error) { return r.conn, nil }
func (r recordingConnector) Driver() driver.Driver                        { return nil }

func newRecordingRepo(t *testing.T) (*PostgresRepo, func() []string) {
	t.Helper()
	var (
		mu    sync.Mutex
		stmts []string
	)
	db := sql.OpenDB(recordingConnector{conn: recordingConn{mu: &mu, stmts: &stmts}})
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepo(db), func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), stmts...)
	}
}

func indexOf(stmts []string, prefix string) int {
	for i, s := range stmts {
		if strings.HasPrefix(s, prefix) {
			return i
		}
	}
	return -1
}

func TestPostgresDeleteTeam_LocksMembersBeforeTeam(t *testing.T) {
	repo, stmts := newRecordingRepo(t)
	x := scopeFor(t, "org-x", "u1")

	if _, err := repo.DeleteTeam(context.Background(), x, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from empty store, got %v", err)
	}

	got := stmts()
	lock := indexOf(got, "SELECT id FROM employees")
	del := indexOf(got, "DELETE FROM teams")
	if lock < 0 || del < 0 {
		t.Fatalf("missing statements: %q", got)
	}
	if lock > del {
		t.Fatalf("team row locked before its members: %q", got)
	}
	if !strings.HasSuffix(got[lock], "FOR UPDATE") {
		t.Fatalf("member select does not lock rows: %q", got[lock])
	}
}

func TestPostgresRelink_LocksEmployeeFirst(t *testing.T) {
	repo, stmts := newRecordingRepo(t)
	x := scopeFor(t, "org-x", "u1")

	if _, err := repo.Link(context.Background(), x, "e1", "t1", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from empty store, got %v", err)
	}

	got := stmts()
	if len(got) == 0 || !strings.Contains(got[0], "FROM employees") || !strings.HasSuffix(got[0], "FOR UPDATE") {
		t.Fatalf("expected employee lock first, got %q", got)
	}
}
