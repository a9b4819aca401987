package mssql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"retailetl/internal/ddl"
	"retailetl/internal/storage"
)

// TestCopyFromEmptyRows verifies that CopyFrom short-circuits when no rows
// are provided and does not require a live database connection.
func TestCopyFromEmptyRows(t *testing.T) {
	t.Parallel()

	r := &Repository{}
	n, err := r.CopyFrom(context.Background(), "dbo.t", []string{"id"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom(nil) = %d, %v; want 0, nil", n, err)
	}
}

// TestMsIdent verifies that msIdent brackets identifiers and escapes closing
// brackets.
func TestMsIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "[simple]"},
		{"dbo", "[dbo]"},
		{"brack]et", "[brack]]et]"},
		{`weird]]name`, `[weird]]]]name]`},
	}
	for _, tc := range cases {
		if got := msIdent(tc.in); got != tc.want {
			t.Fatalf("msIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestMsFQN verifies schema-qualified names are quoted per segment.
func TestMsFQN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"table", "[table]"},
		{"dbo.table", "[dbo].[table]"},
		{"sales.q4.table", "[sales].[q4].[table]"},
	}
	for _, tc := range cases {
		if got := msFQN(tc.in); got != tc.want {
			t.Fatalf("msFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestDialectGuard verifies CREATE TABLE is wrapped in an OBJECT_ID check.
func TestDialectGuard(t *testing.T) {
	got, err := ddl.BuildCreateTableSQL(ddl.TableDef{
		FQN:     "dbo.customers",
		Columns: []ddl.ColumnDef{{Name: "customer_id", Type: ddl.BigInt, PrimaryKey: true}},
	}, Dialect)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "IF OBJECT_ID(N'dbo.customers', N'U') IS NULL\nCREATE TABLE [dbo].[customers] (\n  [customer_id] BIGINT NOT NULL,\n  PRIMARY KEY ([customer_id])\n)"
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

// TestCopyFromIntegration runs only when RETAILETL_TEST_MSSQL holds a DSN.
func TestCopyFromIntegration(t *testing.T) {
	dsn := os.Getenv("RETAILETL_TEST_MSSQL")
	if dsn == "" {
		t.Skip("skipping integration test: set RETAILETL_TEST_MSSQL to run")
	}
	ctx := context.Background()
	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	td := ddl.TableDef{FQN: "dbo.retailetl_copy_test", Columns: []ddl.ColumnDef{
		{Name: "id", Type: ddl.BigInt, PrimaryKey: true},
		{Name: "day", Type: ddl.Date, Nullable: true},
	}}
	if err := storage.EnsureTables(ctx, "mssql", &wrappedRepo{Repository: repo}, []ddl.TableDef{td}, true); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	defer func() { _ = repo.Exec(ctx, ddl.BuildDropTableSQL(td.FQN, Dialect)) }()

	n, err := repo.CopyFrom(ctx, td.FQN, td.ColumnNames(), [][]any{{int64(1), time.Now()}, {int64(2), nil}})
	if err != nil || n != 2 {
		t.Fatalf("CopyFrom: n=%d err=%v", n, err)
	}
}

// --- Test driver plumbing for exercising Exec and CopyFrom without a real DB --

type errDriver struct{}

type errConn struct{}

type errTx struct{}

func (d *errDriver) Open(name string) (driver.Conn, error) {
	return &errConn{}, nil
}

// Prepare is not expected to be called in our tests; if it is, fail loudly.
func (c *errConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected Prepare call")
}

func (c *errConn) Close() error { return nil }

// Begin is required by driver.Conn; database/sql calls BeginTx when available.
func (c *errConn) Begin() (driver.Tx, error) {
	return nil, errors.New("begin (legacy) should not be called")
}

// BeginTx implements driver.ConnBeginTx and always fails, to exercise the
// error path in Repository.CopyFrom.
func (c *errConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, errors.New("begin failed")
}

// ExecContext implements driver.ExecerContext and always fails, to exercise
// the error path in Repository.Exec.
func (c *errConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return nil, errors.New("exec failed")
}

// We don't expect queries in these tests.
func (c *errConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, errors.New("unexpected QueryContext call")
}

func (t *errTx) Commit() error   { return nil }
func (t *errTx) Rollback() error { return nil }

var (
	testDriverOnce sync.Once
	testDriverName = "mssql_test_err"
)

// openErrDB registers and opens a test driver that fails BeginTx and ExecContext.
func openErrDB(t *testing.T) *sql.DB {
	t.Helper()

	testDriverOnce.Do(func() {
		sql.Register(testDriverName, &errDriver{})
	})
	db, err := sql.Open(testDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open(%q) error = %v", testDriverName, err)
	}
	return db
}

// --- Tests ---

// TestExecPropagatesError verifies that Exec forwards errors from the underlying
// *sql.DB.ExecContext call when the driver returns an error.
func TestExecPropagatesError(t *testing.T) {
	t.Parallel()

	db := openErrDB(t)
	r := &Repository{db: db}

	ctx := context.Background()
	err := r.Exec(ctx, "SELECT 1")
	if err == nil {
		t.Fatalf("Exec() error = nil, want non-nil")
	}

	// Ensure the error is the one produced by our test driver.
	if !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("Exec() error = %q, want it to contain %q", err.Error(), "exec failed")
	}
}

// TestCopyFromBeginTxError verifies that CopyFrom surfaces errors from
// db.BeginTx before any bulk-copy logic runs.
func TestCopyFromBeginTxError(t *testing.T) {
	t.Parallel()

	db := openErrDB(t)
	r := &Repository{db: db}

	ctx := context.Background()
	columns := []string{"id", "name"}
	rows := [][]any{
		{1, "alice"},
		{2, "bob"},
	}

	n, err := r.CopyFrom(ctx, "dbo.t", columns, rows)
	if err == nil {
		t.Fatalf("CopyFrom() error = nil, want non-nil when BeginTx fails")
	}
	if n != 0 {
		t.Fatalf("CopyFrom() rows = %d, want 0 on error", n)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("CopyFrom() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}
