// Package output persists the normalized tables as CSV files and reads them
// back for a standalone load.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"retailetl/internal/datasource/file"
	pcsv "retailetl/internal/parser/csv"
	"retailetl/internal/retail"
)

// Hints pins the column kinds of each processed table so that a round trip
// through CSV yields the same Go types the transform produced.
var Hints = map[string]map[string]pcsv.Kind{
	retail.TableCustomers: {
		"customer_id": pcsv.KindInt,
		"age":         pcsv.KindInt,
		"zip_code":    pcsv.KindText,
		"phone":       pcsv.KindText,
	},
	retail.TableProducts: {
		"sku":        pcsv.KindText,
		"category":   pcsv.KindText,
		"unit_price": pcsv.KindFloat,
	},
	retail.TableOrders: {
		"order_id":        pcsv.KindText,
		"sku":             pcsv.KindText,
		"order_date":      pcsv.KindText,
		"status":          pcsv.KindText,
		"payment_method":  pcsv.KindText,
		"month":           pcsv.KindText,
		"item_id":         pcsv.KindInt,
		"customer_id":     pcsv.KindInt,
		"quantity":        pcsv.KindInt,
		"year":            pcsv.KindInt,
		"unit_price":      pcsv.KindFloat,
		"line_total":      pcsv.KindFloat,
		"discount_amount": pcsv.KindFloat,
		"total":           pcsv.KindFloat,
	},
}

// Path returns the CSV path of table under dir.
func Path(dir, table string) string { return filepath.Join(dir, table+".csv") }

// WriteTables writes every table in ts to <dir>/<name>.csv concurrently and
// returns the written paths keyed by table name. Files are written to a
// temporary name and renamed, so a failed run never leaves a truncated CSV
// behind.
func WriteTables(ctx context.Context, dir string, ts retail.Tables) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", dir, err)
	}
	paths := make(map[string]string, len(ts))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, t := range ts {
		name, t := name, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := Path(dir, name)
			if err := writeFile(p, t); err != nil {
				return fmt.Errorf("output: write %s: %w", name, err)
			}
			mu.Lock()
			paths[name] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeFile(path string, t retail.Table) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := pcsv.WriteTable(f, t.Columns, t.Rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadTable reads one processed CSV with the hints for table.
func ReadTable(ctx context.Context, path, table string) (retail.Table, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return retail.Table{}, err
	}
	defer rc.Close()
	res, err := pcsv.NewParser(pcsv.Options{Typed: true, Hints: Hints[table]}).Parse(rc)
	if err != nil {
		return retail.Table{}, fmt.Errorf("output: read %s: %w", path, err)
	}
	return retail.Table{Columns: res.Header, Rows: res.Rows}, nil
}

// ReadTables reads every table named in retail.TableNames from dir.
func ReadTables(ctx context.Context, dir string) (retail.Tables, error) {
	ts := make(retail.Tables, len(retail.TableNames))
	var errs []error
	for _, name := range retail.TableNames {
		t, err := ReadTable(ctx, Path(dir, name), name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ts[name] = t
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ts, nil
}
