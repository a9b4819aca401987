package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// inserted. It must cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// TableCopy binds Repository.CopyFrom to one table.
func TableCopy(repo Repository, table string) CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		return repo.CopyFrom(ctx, table, columns, rows)
	}
}

// BatchResult reports what LoadBatches wrote.
type BatchResult struct {
	Rows    int64
	Batches int64
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the rows reported by
// copyFn and the first error encountered; on cancellation it returns
// ctx.Err(). Progress is logged at debug level after every flush.
func LoadBatches(
	ctx context.Context,
	log zerolog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (BatchResult, error) {
	var res BatchResult
	if batchSize <= 0 {
		return res, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return res, fmt.Errorf("copyFn must not be nil")
	}

	var (
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		res.Rows += n
		batch = batch[:0]
		if err != nil {
			log.Error().Err(err).Int64("inserted", n).Int64("total", res.Rows).Msg("batch insert failed")
			return err
		}

		res.Batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := 0.0
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Debug().
			Int64("batch", res.Batches).
			Int64("inserted", n).
			Int64("total", res.Rows).
			Float64("rows_per_sec", rps).
			Dur("elapsed", now.Sub(start)).
			Msg("batch flushed")
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return res, err
				}
				return res, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return res, err
				}
			}
		}
	}
}
