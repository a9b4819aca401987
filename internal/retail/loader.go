package retail

import (
	"context"
	"errors"
	"fmt"
	"os"

	"retailetl/internal/datasource"
	"retailetl/internal/datasource/file"
	pcsv "retailetl/internal/parser/csv"
)

// ErrInputNotFound is returned by Load when the input path does not exist.
// Errors carrying it also match os.ErrNotExist.
var ErrInputNotFound = errors.New("retail: input file not found")

// Strategy reports which parse produced a loaded table.
type Strategy int

const (
	// StrategyTyped means column types were inferred and every value fit.
	StrategyTyped Strategy = iota
	// StrategyText means the typed parse failed and every column was read
	// as raw text.
	StrategyText
)

func (s Strategy) String() string {
	if s == StrategyText {
		return "text"
	}
	return "typed"
}

// MarshalText renders the strategy name in JSON reports.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DefaultHints pins identifier-like columns to text so that values such as
// zip codes keep leading zeros.
var DefaultHints = map[string]pcsv.Kind{
	ColOrderID: pcsv.KindText,
	ColZip:     pcsv.KindText,
}

// LoadOptions configures Load. The zero value is usable.
type LoadOptions struct {
	Sink Sink
	// Hints overrides DefaultHints when non-nil.
	Hints map[string]pcsv.Kind
	// InferRows is the number of rows sampled for type inference (default 100).
	InferRows int
	// NullTokens overrides the default null tokens when non-nil.
	NullTokens []string
}

// LoadResult is a loaded table tagged with the strategy that produced it.
type LoadResult struct {
	Table    Table
	Schema   Schema
	Strategy Strategy
	// Fallback holds the typed-parse error when Strategy is StrategyText.
	Fallback error
}

// Load reads the sales extract at path. It first tries a typed parse; if
// any value fails its column's inferred type, or the file is malformed, it
// re-reads every column as text. Only a missing file or a failing text
// parse is returned as an error.
func Load(ctx context.Context, path string, opt LoadOptions) (LoadResult, error) {
	em := newEmitter(opt.Sink, StageLoad)
	src := file.NewLocal(path)

	if _, err := src.Stat(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadResult{}, fmt.Errorf("%w: %w", ErrInputNotFound, err)
		}
		return LoadResult{}, err
	}

	hints := opt.Hints
	if hints == nil {
		hints = DefaultHints
	}
	typed := pcsv.Options{
		Typed:      true,
		Hints:      hints,
		InferRows:  opt.InferRows,
		NullTokens: opt.NullTokens,
	}
	res, err := parseFile(ctx, src, typed)
	if err == nil {
		em.info("loaded raw data", map[string]any{
			"path": path, "rows": len(res.Rows), "columns": len(res.Header), "strategy": StrategyTyped.String(),
		})
		return newLoadResult(res, StrategyTyped, nil), nil
	}
	if ctx.Err() != nil {
		return LoadResult{}, ctx.Err()
	}

	em.warn("typed parse failed, falling back to text", map[string]any{"path": path, "error": err.Error()})
	text := pcsv.Options{Lenient: true, NullTokens: opt.NullTokens}
	res, ferr := parseFile(ctx, src, text)
	if ferr != nil {
		return LoadResult{}, fmt.Errorf("load %s: %w", path, ferr)
	}
	em.info("loaded raw data", map[string]any{
		"path": path, "rows": len(res.Rows), "columns": len(res.Header), "strategy": StrategyText.String(),
	})
	return newLoadResult(res, StrategyText, err), nil
}

func parseFile(ctx context.Context, src datasource.Source, opt pcsv.Options) (pcsv.Result, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return pcsv.Result{}, err
	}
	defer rc.Close()
	return pcsv.NewParser(opt).Parse(rc)
}

func newLoadResult(res pcsv.Result, s Strategy, fallback error) LoadResult {
	t := Table{Columns: res.Header, Rows: res.Rows}
	return LoadResult{Table: t, Schema: t.Schema(), Strategy: s, Fallback: fallback}
}
