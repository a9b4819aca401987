package verify

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE customers (customer_id INTEGER PRIMARY KEY, email TEXT);
CREATE TABLE products (sku TEXT PRIMARY KEY, category TEXT, unit_price REAL);
CREATE TABLE orders (
  order_id TEXT, item_id INTEGER, customer_id INTEGER, sku TEXT, total REAL,
  PRIMARY KEY (order_id, item_id)
);
INSERT INTO customers VALUES (1, 'a@example.com'), (2, 'b@example.com');
INSERT INTO products VALUES ('a-1', 'Men''s Fashion', 10), ('b-2', 'Mobiles & Tablets', 100), ('c-3', 'Books', 5);
INSERT INTO orders VALUES
  ('100', 1, 1, 'a-1', 20.0),
  ('100', 2, 1, 'b-2', 100.0),
  ('101', 3, 2, 'c-3', 5.5),
  ('102', 4, 2, 'a-1', 10.0);
`

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "verify.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.MustExec(schema)
	return db
}

func TestRun(t *testing.T) {
	db := openDB(t)
	rep, err := New(db, "sqlite", "", "", zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]int64{"customers": 2, "products": 3, "orders": 4}
	if !reflect.DeepEqual(rep.Counts, want) {
		t.Fatalf("counts got %v want %v", rep.Counts, want)
	}
	if rep.Revenue != 135.5 {
		t.Fatalf("revenue got %v want 135.5", rep.Revenue)
	}
	// (120 + 5.5 + 10) / 3
	if rep.AverageOrderValue != 45.17 {
		t.Fatalf("aov got %v want 45.17", rep.AverageOrderValue)
	}
	wantTop := []CategoryRevenue{
		{"Mobiles & Tablets", 100},
		{"Men's Fashion", 30},
		{"Books", 5.5},
	}
	if !reflect.DeepEqual(rep.TopCategories, wantTop) {
		t.Fatalf("top got %+v want %+v", rep.TopCategories, wantTop)
	}
	if !rep.OK() {
		t.Fatalf("unexpected warnings %v", rep.Warnings)
	}
}

func TestRunReportsOrphans(t *testing.T) {
	db := openDB(t)
	db.MustExec(`INSERT INTO orders VALUES ('103', 5, 9, 'zz', 1.0), ('104', 6, NULL, 'a-1', 1.0)`)

	rep, err := New(db, "sqlite", "", "", zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OrphanCustomers != 1 || rep.OrphanProducts != 1 {
		t.Fatalf("orphans got customers=%d products=%d want 1 and 1", rep.OrphanCustomers, rep.OrphanProducts)
	}
	if len(rep.Warnings) != 2 || !strings.Contains(rep.Warnings[0], "customers") {
		t.Fatalf("warnings got %v", rep.Warnings)
	}
}

func TestRunEmptyTables(t *testing.T) {
	db := openDB(t)
	db.MustExec(`DELETE FROM orders`)
	rep, err := New(db, "sqlite", "", "", zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Revenue != 0 || rep.AverageOrderValue != 0 || len(rep.TopCategories) != 0 {
		t.Fatalf("got %+v want zero figures", rep)
	}
}

func TestRunMissingTable(t *testing.T) {
	db := openDB(t)
	db.MustExec(`DROP TABLE orders`)
	if _, err := New(db, "sqlite", "", "", zerolog.Nop()).Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing orders table")
	}
}

func TestTopCategoriesSQL(t *testing.T) {
	ms := (&Verifier{kind: "mssql"}).topCategoriesSQL("o", "p")
	if !strings.HasPrefix(ms, "SELECT TOP 5 ") || strings.Contains(ms, "LIMIT") {
		t.Fatalf("mssql got %q", ms)
	}
	pg := (&Verifier{kind: "postgres"}).topCategoriesSQL("o", "p")
	if !strings.HasSuffix(pg, "LIMIT 5") {
		t.Fatalf("postgres got %q", pg)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatalf("expected error")
	}
}
