package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retailetl/internal/ddl"
	"retailetl/internal/storage"
)

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	db, err := Open(":memory:")
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return New(db)
}

var (
	parent = ddl.TableDef{FQN: "customers", Columns: []ddl.ColumnDef{
		{Name: "customer_id", Type: ddl.BigInt, PrimaryKey: true},
		{Name: "email", Type: ddl.Text, Nullable: true},
	}}
	child = ddl.TableDef{FQN: "orders", Columns: []ddl.ColumnDef{
		{Name: "order_id", Type: ddl.Text, PrimaryKey: true},
		{Name: "customer_id", Type: ddl.BigInt, Nullable: true},
		{Name: "order_date", Type: ddl.Date, Nullable: true},
		{Name: "total", Type: ddl.Numeric, Nullable: true},
	}, ForeignKeys: []ddl.ForeignKey{{Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"customer_id"}}}}
)

func TestCopyFromAndForeignKeys(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	if err := storage.EnsureTables(ctx, "sqlite", &wrappedRepo{Repository: r}, []ddl.TableDef{parent, child}, true); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}

	n, err := r.CopyFrom(ctx, "customers", parent.ColumnNames(), [][]any{{int64(1), "a@x.com"}, {int64(2), nil}})
	if err != nil || n != 2 {
		t.Fatalf("CopyFrom customers: n=%d err=%v", n, err)
	}
	day := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := r.CopyFrom(ctx, "orders", child.ColumnNames(), [][]any{{"o1", int64(1), day, 179.8}}); err != nil {
		t.Fatalf("CopyFrom orders: %v", err)
	}

	var got string
	if err := r.db.QueryRow(`SELECT order_date FROM orders WHERE order_id = 'o1'`).Scan(&got); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.HasPrefix(got, "2021-03-01") {
		t.Fatalf("got order_date %q want 2021-03-01", got)
	}

	// Unknown customer violates the foreign key; the whole batch rolls back.
	_, err = r.CopyFrom(ctx, "orders", child.ColumnNames(), [][]any{{"o2", int64(1), nil, nil}, {"o3", int64(99), nil, nil}})
	if err == nil {
		t.Fatal("want foreign key violation")
	}
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("got %d orders err=%v want 1 after rollback", count, err)
	}
}

func TestCopyFromValidation(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	if _, err := r.CopyFrom(ctx, "t", nil, [][]any{{1}}); err == nil {
		t.Fatal("want error for empty columns")
	}
	if n, err := r.CopyFrom(ctx, "t", []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("empty rows: n=%d err=%v", n, err)
	}
	if err := r.Exec(ctx, `CREATE TABLE t (a INTEGER)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := r.CopyFrom(ctx, "t", []string{"a"}, [][]any{{1, 2}}); err == nil {
		t.Fatal("want error for ragged row")
	}
	if err := r.Exec(ctx, "  "); err != nil {
		t.Fatalf("blank exec: %v", err)
	}
}

func TestReplaceRebuildsTables(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "retail.db")
	r, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	defs := []ddl.TableDef{parent, child}
	for i := 0; i < 2; i++ {
		if err := storage.EnsureTables(ctx, "sqlite", &wrappedRepo{Repository: r}, defs, true); err != nil {
			t.Fatalf("EnsureTables #%d: %v", i, err)
		}
		if _, err := r.CopyFrom(ctx, "customers", parent.ColumnNames(), [][]any{{int64(1), nil}}); err != nil {
			t.Fatalf("CopyFrom #%d: %v", i, err)
		}
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("want error for empty DSN")
	}
}

func BenchmarkCopyFrom(b *testing.B) {
	ctx := context.Background()
	r := newRepo(b)
	if err := r.Exec(ctx, `CREATE TABLE bench (id INTEGER, name TEXT)`); err != nil {
		b.Fatal(err)
	}
	rows := make([][]any, 1000)
	for i := range rows {
		rows[i] = []any{int64(i), "x"}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.CopyFrom(ctx, "bench", []string{"id", "name"}, rows); err != nil {
			b.Fatal(err)
		}
	}
}
