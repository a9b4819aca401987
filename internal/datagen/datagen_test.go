package datagen

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"retailetl/internal/retail"
)

func TestSeedIsReproducible(t *testing.T) {
	var a, b bytes.Buffer
	opt := Options{Rows: 200, Seed: 42, DefectRate: 0.2}
	sa, err := New(opt).Write(&a)
	if err != nil {
		t.Fatalf("write a: %v", err)
	}
	sb, err := New(opt).Write(&b)
	if err != nil {
		t.Fatalf("write b: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("same seed produced different output")
	}
	if !reflect.DeepEqual(sa, sb) {
		t.Fatalf("stats got %+v want %+v", sb, sa)
	}
}

func TestCleanOutput(t *testing.T) {
	rows, st := New(Options{Rows: 150, Seed: 7}).Records()
	if st.LineItems != 150 || st.Rows != 150 || len(rows) != 150 {
		t.Fatalf("got %+v with %d rows want 150 clean lines", st, len(rows))
	}
	seen := map[[2]any]bool{}
	for _, r := range rows {
		k := [2]any{r["order_id"], r["item_id"]}
		if seen[k] {
			t.Fatalf("duplicate line item %v", k)
		}
		seen[k] = true
		v, tot, d := r["value"].(float64), r["total"].(float64), r["discount_amount"].(float64)
		if want := round2(float64(r["qty_ordered"].(int64)) * r["price"].(float64)); v != want {
			t.Fatalf("value got %v want %v", v, want)
		}
		if want := round2(v - d); tot != want {
			t.Fatalf("total got %v want %v", tot, want)
		}
	}
}

func TestDefectsAreCounted(t *testing.T) {
	rows, st := New(Options{Rows: 500, Seed: 3, DefectRate: 1}).Records()
	injected := st.Duplicates + st.Reorders + st.Mismatches + st.NonPositive + st.NullContacts + st.Messy
	if injected != st.LineItems {
		t.Fatalf("injected %d defects for %d line items", injected, st.LineItems)
	}
	if st.Rows != st.LineItems+st.Duplicates+st.Reorders || len(rows) != st.Rows {
		t.Fatalf("rows got %d (stats %+v)", len(rows), st)
	}
	for name, n := range map[string]int{
		"duplicates": st.Duplicates, "reorders": st.Reorders, "mismatches": st.Mismatches,
		"non_positive": st.NonPositive, "null_contacts": st.NullContacts, "messy": st.Messy,
	} {
		if n == 0 {
			t.Fatalf("no %s injected in %+v", name, st)
		}
	}
}

func TestWriteFileFeedsTransform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "sales.csv")
	st, err := WriteFile(path, Options{Rows: 400, Seed: 11, DefectRate: 0.3})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	header, err := csv.NewReader(f).Read()
	f.Close()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !reflect.DeepEqual(header, Header) {
		t.Fatalf("header got %v want %v", header, Header)
	}

	res, err := retail.Transform(context.Background(), path, retail.Options{})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.RawRows != st.Rows {
		t.Fatalf("raw rows got %d want %d", res.RawRows, st.Rows)
	}
	if res.Clean.ExactDuplicates != st.Duplicates {
		t.Fatalf("exact duplicates got %d want %d", res.Clean.ExactDuplicates, st.Duplicates)
	}
	if res.Clean.LineItemDuplicates != st.Reorders {
		t.Fatalf("line item duplicates got %d want %d", res.Clean.LineItemDuplicates, st.Reorders)
	}
	if res.Clean.OutputRows > st.LineItems || res.Clean.OutputRows < st.LineItems-st.NonPositive {
		t.Fatalf("output rows %d outside [%d, %d]", res.Clean.OutputRows, st.LineItems-st.NonPositive, st.LineItems)
	}
	if !res.Validation[retail.CheckProductsUniqueSKUs] || !res.Validation[retail.CheckCustomersUniqueIDs] {
		t.Fatalf("uniqueness checks failed: %v", res.Validation)
	}
}
