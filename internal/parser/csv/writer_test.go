package csv_test

import (
	"bytes"
	"testing"
	"time"

	pcsv "retailetl/internal/parser/csv"
	"retailetl/pkg/records"
)

func TestWriteTable(t *testing.T) {
	rows := []records.Record{
		{"id": int64(1), "price": 19.9, "day": time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), "name": "Ann"},
		{"id": int64(2), "price": nil, "name": "O,Brien"},
	}
	var buf bytes.Buffer
	if err := pcsv.WriteTable(&buf, []string{"id", "price", "day", "name"}, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "id,price,day,name\n1,19.9,2021-03-04,Ann\n2,,,\"O,Brien\"\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
