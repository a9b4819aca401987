package retail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pcsv "retailetl/internal/parser/csv"
	"retailetl/pkg/records"
)

var salesHeader = []string{
	"order_id", "order_date", "status", "item_id", "sku", "qty_ordered", "price", "value",
	"discount_amount", "total", "category", "payment_method", "bi_st", "cust_id", "year", "month",
	"ref_num", "Name Prefix", "First Name", "Middle Initial", "Last Name", "Gender", "age",
	"full_name", "E Mail", "Customer Since", "SSN", "Phone No.", "Place Name", "County", "City",
	"State", "Zip", "Region", "User Name", "Discount_Percent",
}

// line returns a consistent, typed sales row with kv overrides applied.
func line(kv ...any) records.Record {
	r := records.Record{
		"order_id": "100354678", "order_date": "2021-03-01", "status": "complete",
		"item_id": int64(574772), "sku": "oasis_Oasis-064-36", "qty_ordered": int64(2),
		"price": 89.9, "value": 179.8, "discount_amount": 0.0, "total": 179.8,
		"category": "Men's Fashion", "payment_method": "cod", "bi_st": "Gross",
		"cust_id": int64(60124), "year": int64(2021), "month": "Mar", "ref_num": int64(958625),
		"Name Prefix": "Drs.", "First Name": "Jani", "Middle Initial": "W", "Last Name": "Titus",
		"Gender": "F", "age": int64(43), "full_name": "Titus, Jani", "E Mail": "jani.titus@gmail.com",
		"Customer Since": "8/22/2006", "SSN": "230-11-3803", "Phone No.": "405-959-1129",
		"Place Name": "Vinson", "County": "Harmon", "City": "Vinson", "State": "OK",
		"Zip": "73571", "Region": "South", "User Name": "jwtitus", "Discount_Percent": 0.0,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func table(rows ...records.Record) Table {
	return Table{Columns: append([]string(nil), salesHeader...), Rows: rows}
}

// writeCSV writes rows under salesHeader to a temp file and returns its path.
func writeCSV(t *testing.T, rows ...records.Record) string {
	t.Helper()
	var b strings.Builder
	if err := pcsv.WriteTable(&b, salesHeader, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return writeRaw(t, b.String())
}

func writeRaw(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return p
}

func mustClean(t *testing.T, raw Table) (Table, CleanStats) {
	t.Helper()
	out, stats, err := Clean(raw, nil)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	return out, stats
}
