package storage

import (
	"context"

	"retailetl/pkg/records"
)

// Converter turns one cell into the value handed to the driver.
type Converter func(v any) (any, error)

// RecordRows streams recs as rows aligned to columns. conv, when non-nil,
// converts each cell; a conversion error stops the stream and is delivered
// on the returned error channel. Both channels are closed when done or when
// ctx is canceled.
func RecordRows(ctx context.Context, columns []string, recs []records.Record, conv map[string]Converter) (<-chan []any, <-chan error) {
	out := make(chan []any, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, r := range recs {
			row := r.Values(columns)
			for i, c := range columns {
				f := conv[c]
				if f == nil {
					continue
				}
				v, err := f(row[i])
				if err != nil {
					errc <- err
					return
				}
				row[i] = v
			}
			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}
