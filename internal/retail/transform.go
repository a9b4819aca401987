package retail

import (
	"context"
	"fmt"
	"time"
)

// Options configures Transform.
type Options struct {
	Load LoadOptions
	Sink Sink
	// Now is used for timing; defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a transform run.
type Result struct {
	Strategy   Strategy         `json:"strategy"`
	RawRows    int              `json:"raw_rows"`
	Quality    QualityReport    `json:"quality"`
	Clean      CleanStats       `json:"clean"`
	Tables     Tables           `json:"-"`
	Validation ValidationReport `json:"validation"`
	Duration   time.Duration    `json:"duration"`
}

// Transform runs load, quality analysis, cleaning, normalization and table
// validation over the extract at path. It returns all three tables or an
// error, never a partial result. Failed validation checks do not make
// Transform fail.
func Transform(ctx context.Context, path string, opt Options) (Result, error) {
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	if opt.Load.Sink == nil {
		opt.Load.Sink = opt.Sink
	}

	loaded, err := Load(ctx, path, opt.Load)
	if err != nil {
		return Result{}, err
	}
	quality := Analyze(loaded.Table, opt.Sink)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	cleaned, stats, err := Clean(loaded.Table, opt.Sink)
	if err != nil {
		return Result{}, fmt.Errorf("transform %s: %w", path, err)
	}
	tables, err := Normalize(cleaned, opt.Sink)
	if err != nil {
		return Result{}, fmt.Errorf("transform %s: %w", path, err)
	}
	validation := ValidateTables(tables, opt.Sink)

	res := Result{
		Strategy:   loaded.Strategy,
		RawRows:    loaded.Table.Len(),
		Quality:    quality,
		Clean:      stats,
		Tables:     tables,
		Validation: validation,
		Duration:   now().Sub(start),
	}
	newEmitter(opt.Sink, "transform").info("transformation completed", map[string]any{
		"raw_rows":  res.RawRows,
		"customers": tables[TableCustomers].Len(),
		"products":  tables[TableProducts].Len(),
		"orders":    tables[TableOrders].Len(),
		"duration":  res.Duration.String(),
	})
	return res, nil
}
