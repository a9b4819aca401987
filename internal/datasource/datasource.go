// Package datasource defines how raw extracts are opened. Local files and
// the HTTP download client live in subpackages.
package datasource

import (
	"context"
	"io"
)

// Source opens a raw extract for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
