// Package load writes the normalized retail tables into a relational store:
// it creates (or rebuilds) the tables from their definitions and bulk-loads
// dimensions before facts through the storage batch loader.
package load

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"retailetl/internal/ddl"
	"retailetl/internal/metrics"
	pcsv "retailetl/internal/parser/csv"
	"retailetl/internal/retail"
	"retailetl/internal/storage"
	"retailetl/internal/transformer/builtin"
	"retailetl/pkg/records"
)

// DefaultBatchSize is the number of rows per bulk insert.
const DefaultBatchSize = 1000

// DateLayouts are tried in order when an order_date arrives as text.
var DateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Config configures a Loader.
type Config struct {
	Kind      string // storage kind, selects the DDL dialect
	BatchSize int
	// Replace drops and recreates the tables before loading.
	Replace bool
	// Prefix is prepended to every table name, e.g. "retail." for a schema.
	Prefix string
	Job    string
}

// TableStats describes the load of one table.
type TableStats struct {
	Rows     int64         `json:"rows"`
	Batches  int64         `json:"batches"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Stats describes a whole load.
type Stats struct {
	Tables   map[string]TableStats `json:"tables"`
	Rows     int64                 `json:"rows"`
	Duration time.Duration         `json:"duration"`
}

// Loader loads normalized tables into one Repository.
type Loader struct {
	repo storage.Repository
	cfg  Config
	log  zerolog.Logger
}

// New returns a Loader. A non-positive batch size means DefaultBatchSize.
func New(repo storage.Repository, cfg Config, log zerolog.Logger) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Job == "" {
		cfg.Job = "retailetl"
	}
	return &Loader{repo: repo, cfg: cfg, log: log}
}

// Load creates the tables and inserts customers, products and orders in
// that order. All three tables must be present.
func (l *Loader) Load(ctx context.Context, ts retail.Tables) (Stats, error) {
	start := time.Now()
	stats := Stats{Tables: make(map[string]TableStats, len(ts))}

	defs := make([]ddl.TableDef, 0, len(retail.TableNames))
	for _, name := range retail.TableNames {
		t, ok := ts[name]
		if !ok {
			return stats, fmt.Errorf("load: table %s missing", name)
		}
		defs = append(defs, Definition(name, t, l.cfg.Prefix))
	}
	if err := storage.EnsureTables(ctx, l.cfg.Kind, l.repo, defs, l.cfg.Replace); err != nil {
		return stats, fmt.Errorf("load: ensure tables: %w", err)
	}
	l.log.Info().Str("kind", l.cfg.Kind).Bool("replace", l.cfg.Replace).Msg("tables ready")

	for i, name := range retail.TableNames {
		st, err := l.loadTable(ctx, defs[i], ts[name])
		stats.Tables[name] = st
		stats.Rows += st.Rows
		if err != nil {
			return stats, fmt.Errorf("load: %s: %w", name, err)
		}
	}
	stats.Duration = time.Since(start)
	l.log.Info().Int64("rows", stats.Rows).Dur("elapsed", stats.Duration).Msg("load complete")
	return stats, nil
}

func (l *Loader) loadTable(ctx context.Context, td ddl.TableDef, t retail.Table) (TableStats, error) {
	start := time.Now()
	var st TableStats
	cols := td.ColumnNames()
	pk := primaryKey(td)

	rows := make([]records.Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		if hasNil(r, pk) {
			st.Skipped++
			continue
		}
		rows = append(rows, r)
	}
	if st.Skipped > 0 {
		l.log.Warn().Str("table", td.FQN).Int("rows", st.Skipped).Strs("key", pk).Msg("skipping rows with null key")
	}

	log := l.log.With().Str("table", td.FQN).Logger()
	streamCtx, cancel := context.WithCancel(ctx)
	in, errc := storage.RecordRows(streamCtx, cols, rows, converters(td))
	res, err := storage.LoadBatches(ctx, log, cols, in, l.cfg.BatchSize, storage.TableCopy(l.repo, td.FQN))
	// unblock the producer if the copy stopped early
	cancel()
	if cerr := <-errc; cerr != nil && err == nil {
		err = cerr
	}
	st.Rows, st.Batches = res.Rows, res.Batches
	st.Duration = time.Since(start)

	metrics.RecordRow(l.cfg.Job, "inserted", res.Rows)
	metrics.RecordBatches(l.cfg.Job, res.Batches)
	if err != nil {
		return st, err
	}
	log.Info().Int64("rows", st.Rows).Int64("batches", st.Batches).Dur("elapsed", st.Duration).Msg("table loaded")
	return st, nil
}

func hasNil(r records.Record, cols []string) bool {
	for _, c := range cols {
		if r[c] == nil {
			return true
		}
	}
	return false
}

func converters(td ddl.TableDef) map[string]storage.Converter {
	out := make(map[string]storage.Converter, len(td.Columns))
	for _, c := range td.Columns {
		name := c.Name
		switch c.Type {
		case ddl.BigInt, ddl.Int:
			out[name] = func(v any) (any, error) {
				if v == nil {
					return nil, nil
				}
				n, ok := builtin.ToInt(v)
				if !ok {
					return nil, fmt.Errorf("column %s: %v is not an integer", name, v)
				}
				return n, nil
			}
		case ddl.Numeric:
			out[name] = func(v any) (any, error) {
				if v == nil {
					return nil, nil
				}
				f, ok := builtin.ToFloat(v)
				if !ok {
					return nil, fmt.Errorf("column %s: %v is not a number", name, v)
				}
				return f, nil
			}
		case ddl.Date:
			out[name] = func(v any) (any, error) {
				d, err := ParseDate(v)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", name, err)
				}
				if d.IsZero() {
					return nil, nil
				}
				return d, nil
			}
		default:
			out[name] = func(v any) (any, error) {
				if v == nil {
					return nil, nil
				}
				return pcsv.FormatCell(v), nil
			}
		}
	}
	return out
}

// ParseDate converts v to a UTC date. nil and blank text give the zero time.
func ParseDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}
