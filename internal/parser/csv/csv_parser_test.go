package csv_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	pcsv "retailetl/internal/parser/csv"
)

const sample = "\uFEFForder_id,qty_ordered,price,Zip,status\n" +
	"100354678,2,19.99,02108,complete\n" +
	"100354679,1,5,NULL,canceled\n" +
	"100354680,,7.5,90001,None\n"

func TestParseTypedInfersKinds(t *testing.T) {
	p := pcsv.NewParser(pcsv.Options{
		Typed: true,
		Hints: map[string]pcsv.Kind{"order_id": pcsv.KindText, "Zip": pcsv.KindText},
	})
	res, err := p.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantHeader := []string{"order_id", "qty_ordered", "price", "Zip", "status"}
	if !reflect.DeepEqual(res.Header, wantHeader) {
		t.Fatalf("header got %v want %v", res.Header, wantHeader)
	}
	wantKinds := map[string]pcsv.Kind{
		"order_id":    pcsv.KindText,
		"qty_ordered": pcsv.KindInt,
		"price":       pcsv.KindFloat,
		"Zip":         pcsv.KindText,
		"status":      pcsv.KindText,
	}
	if !reflect.DeepEqual(res.Kinds, wantKinds) {
		t.Fatalf("kinds got %v want %v", res.Kinds, wantKinds)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("rows=%d want 3", len(res.Rows))
	}
	r0 := res.Rows[0]
	if r0["order_id"] != "100354678" || r0["qty_ordered"] != int64(2) || r0["price"] != 19.99 || r0["Zip"] != "02108" {
		t.Fatalf("row0 got %v", r0)
	}
	if res.Rows[1]["Zip"] != nil || res.Rows[2]["qty_ordered"] != nil || res.Rows[2]["status"] != nil {
		t.Fatalf("null tokens not mapped to nil: %v %v", res.Rows[1], res.Rows[2])
	}
}

func TestParseTypedCoercionError(t *testing.T) {
	var b strings.Builder
	b.WriteString("order_id,price\n")
	for i := 0; i < 5; i++ {
		b.WriteString("1,2.5\n")
	}
	b.WriteString("2,abc\n")

	p := pcsv.NewParser(pcsv.Options{Typed: true, InferRows: 5})
	_, err := p.Parse(strings.NewReader(b.String()))
	var ce *pcsv.CoercionError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v want *CoercionError", err)
	}
	if ce.Line != 7 || ce.Column != "price" || ce.Value != "abc" || ce.Kind != pcsv.KindFloat {
		t.Fatalf("got %+v", ce)
	}
}

func TestParseTextKeepsStrings(t *testing.T) {
	p := pcsv.NewParser(pcsv.Options{})
	res, err := p.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v := res.Rows[0]["qty_ordered"]; v != "2" {
		t.Fatalf("qty got %#v want \"2\"", v)
	}
	if res.Kinds["price"] != pcsv.KindText {
		t.Fatalf("price kind got %v want text", res.Kinds["price"])
	}
}

func TestParseStrictRejectsRaggedRows(t *testing.T) {
	in := "a,b\n1,2\n3\n"
	if _, err := pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader(in)); err == nil {
		t.Fatalf("expected error for ragged row")
	}
	res, err := pcsv.NewParser(pcsv.Options{Lenient: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if res.Rows[1]["a"] != "3" || res.Rows[1]["b"] != nil {
		t.Fatalf("got %v", res.Rows[1])
	}
}

func TestParseLenientQuotes(t *testing.T) {
	in := "a,b\n1,say \"hi\"\n"
	res, err := pcsv.NewParser(pcsv.Options{Lenient: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Rows[0]["b"] != `say "hi"` {
		t.Fatalf("got %q", res.Rows[0]["b"])
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader(""))
	if !errors.Is(err, pcsv.ErrNoHeader) {
		t.Fatalf("got %v want ErrNoHeader", err)
	}
}

func TestParseMaxRows(t *testing.T) {
	res, err := pcsv.NewParser(pcsv.Options{MaxRows: 2}).Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows=%d want 2", len(res.Rows))
	}
}
