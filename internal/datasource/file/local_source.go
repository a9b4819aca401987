// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// Behavior:
//   - If the context is already canceled, Open returns the context error
//     without touching the filesystem.
//   - Otherwise the file is opened and the kernel is told it will be read
//     sequentially (Linux only; a no-op elsewhere).
//   - Filesystem errors are wrapped with the path and remain matchable with
//     errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Info describes a local file for freshness checks.
type Info struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// SizeMB returns the size in mebibytes.
func (i Info) SizeMB() float64 { return float64(i.Size) / (1024 * 1024) }

// Age returns how long ago the file was modified, relative to now.
func (i Info) Age(now time.Time) time.Duration { return now.Sub(i.ModTime) }

// Stat returns the file's size and modification time.
func (l *Local) Stat() (Info, error) {
	fi, err := os.Stat(l.path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("stat %s: is a directory", l.path)
	}
	return Info{Path: l.path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}
