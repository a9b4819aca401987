package extract

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"retailetl/internal/datasource/file"
)

// HashFile returns the hex xxh3-128 digest of the file at path.
func HashFile(ctx context.Context, path string) (string, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// checkExisting stats and hashes every expected file concurrently. Missing
// files map to nil.
func (e *Extractor) checkExisting(ctx context.Context) (map[string]*FileInfo, error) {
	out := make(map[string]*FileInfo, len(e.cfg.Files))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	now := e.now()

	for _, name := range e.cfg.Files {
		name := name
		g.Go(func() error {
			src := file.NewLocal(filepath.Join(e.cfg.RawDir, name))
			st, err := src.Stat()
			if errors.Is(err, os.ErrNotExist) {
				e.log.Info().Str("file", name).Msg("missing expected file")
				mu.Lock()
				out[name] = nil
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			sum, err := HashFile(gctx, src.Path())
			if err != nil {
				return err
			}
			ageDays := st.Age(now).Hours() / 24
			fi := &FileInfo{
				Path:         src.Path(),
				SizeMB:       round2(st.SizeMB()),
				AgeDays:      round2(ageDays),
				Hash:         sum,
				LastModified: st.ModTime,
				ValidSize:    st.SizeMB() >= e.cfg.MinFileSizeMB,
				Recent:       st.Age(now) <= e.cfg.MaxFileAge,
			}
			e.log.Info().Str("file", name).Float64("size_mb", fi.SizeMB).Float64("age_days", fi.AgeDays).
				Str("hash", short(sum)).Msg("found existing file")
			mu.Lock()
			out[name] = fi
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: check existing: %w", err)
	}
	return out, nil
}

// unpack extracts the expected files from a zip archive into dir. If the
// archive is not a zip and exactly one file is expected, the archive itself
// is taken to be that file.
func unpack(archive, dir string, files []string) error {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrFormat) && len(files) == 1 {
		return os.Rename(archive, filepath.Join(dir, files[0]))
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	want := make(map[string]bool, len(files))
	for _, f := range files {
		want[f] = true
	}
	for _, zf := range zr.File {
		name := filepath.Base(zf.Name)
		if !want[name] || zf.FileInfo().IsDir() {
			continue
		}
		if err := unzipOne(zf, filepath.Join(dir, name)); err != nil {
			return err
		}
		delete(want, name)
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		return fmt.Errorf("archive is missing %v", missing)
	}
	return nil
}

func unzipOne(zf *zip.File, dst string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", zf.Name, err)
	}
	defer rc.Close()
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("unzip %s: %w", zf.Name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
