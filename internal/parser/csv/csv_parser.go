// Package csv reads delimited sales extracts into records. It supports two
// strategies: a typed parse that infers int/float/text per column from a
// sample of rows and fails on the first value that does not fit, and a
// lenient text parse that keeps every cell as a string.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"retailetl/pkg/records"
)

// Kind is the inferred or declared type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	}
	return "text"
}

// DefaultNullTokens are the cell values read as nil.
var DefaultNullTokens = []string{"", "NULL", "null", "None"}

// Options configures the CSV parser. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// NullTokens lists cell values converted to nil. When nil,
	// DefaultNullTokens is used.
	NullTokens []string

	// Typed enables per-column type inference and conversion. When false
	// every non-null cell is returned as a string.
	Typed bool

	// Hints pins the kind of specific columns, bypassing inference. Only
	// applies when Typed is true.
	Hints map[string]Kind

	// InferRows is the number of leading data rows used for inference.
	// When zero, 100 is used.
	InferRows int

	// Lenient relaxes quoting and accepts ragged rows: short rows are padded
	// with nil, extra cells are dropped.
	Lenient bool

	// MaxRows stops reading after this many data rows when > 0.
	MaxRows int
}

// Result is the outcome of a parse.
type Result struct {
	Header []string
	Kinds  map[string]Kind
	Rows   []records.Record
}

// CoercionError reports a cell that does not fit its column's kind.
type CoercionError struct {
	Line   int
	Column string
	Value  string
	Kind   Kind
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("line %d: column %q: cannot parse %q as %s", e.Line, e.Column, e.Value, e.Kind)
}

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv: missing header row")

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.NullTokens == nil {
		opt.NullTokens = DefaultNullTokens
	}
	if opt.InferRows <= 0 {
		opt.InferRows = 100
	}
	return &Parser{opt: opt}
}

// Parse consumes r entirely. In strict mode (Lenient=false) any malformed
// row aborts the parse; in typed mode any value that does not fit its
// column kind aborts with a *CoercionError.
func (p *Parser) Parse(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.Comma = p.opt.Comma
	cr.ReuseRecord = false
	if p.opt.Lenient {
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
	}

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, ErrNoHeader
	}
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	header = StripHeaderBOM(append([]string(nil), header...))

	var raw [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv: %w", err)
		}
		raw = append(raw, row)
		if p.opt.MaxRows > 0 && len(raw) >= p.opt.MaxRows {
			break
		}
	}

	nulls := make(map[string]struct{}, len(p.opt.NullTokens))
	for _, t := range p.opt.NullTokens {
		nulls[t] = struct{}{}
	}
	isNull := func(s string) bool { _, ok := nulls[s]; return ok }

	kinds := make(map[string]Kind, len(header))
	if p.opt.Typed {
		kinds = p.infer(header, raw, isNull)
	} else {
		for _, h := range header {
			kinds[h] = KindText
		}
	}

	out := make([]records.Record, 0, len(raw))
	for i, row := range raw {
		rec := make(records.Record, len(header))
		for j, col := range header {
			if j >= len(row) || isNull(row[j]) {
				rec[col] = nil
				continue
			}
			v, ok := convert(row[j], kinds[col])
			if !ok {
				// header is line 1.
				return Result{}, &CoercionError{Line: i + 2, Column: col, Value: row[j], Kind: kinds[col]}
			}
			rec[col] = v
		}
		out = append(out, rec)
	}

	return Result{Header: header, Kinds: kinds, Rows: out}, nil
}

// infer picks the narrowest kind that fits every non-null sample value.
func (p *Parser) infer(header []string, raw [][]string, isNull func(string) bool) map[string]Kind {
	kinds := make(map[string]Kind, len(header))
	n := len(raw)
	if n > p.opt.InferRows {
		n = p.opt.InferRows
	}
	for j, col := range header {
		if k, ok := p.opt.Hints[col]; ok {
			kinds[col] = k
			continue
		}
		kind, seen := KindInt, false
		for _, row := range raw[:n] {
			if j >= len(row) || isNull(row[j]) {
				continue
			}
			seen = true
			if kind == KindInt {
				if _, err := strconv.ParseInt(row[j], 10, 64); err == nil {
					continue
				}
				kind = KindFloat
			}
			if _, err := strconv.ParseFloat(row[j], 64); err != nil {
				kind = KindText
				break
			}
		}
		if !seen {
			kind = KindText
		}
		kinds[col] = kind
	}
	return kinds
}

func convert(s string, k Kind) (any, bool) {
	switch k {
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return s, true
}
