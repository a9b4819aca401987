package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"retailetl/internal/datasource/file"
	pcsv "retailetl/internal/parser/csv"
)

// SampleRows is the number of rows read when validating a file.
const SampleRows = 10

// Validation describes an expected file after extraction.
type Validation struct {
	Exists      bool     `json:"exists"`
	SizeMB      float64  `json:"size_mb,omitempty"`
	RowsSample  int      `json:"rows_sample,omitempty"`
	Columns     int      `json:"columns,omitempty"`
	ColumnNames []string `json:"column_names,omitempty"`
	Hash        string   `json:"file_hash,omitempty"`
	Valid       bool     `json:"valid"`
	Skipped     bool     `json:"skipped,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (e *Extractor) validate(ctx context.Context) (map[string]Validation, error) {
	out := make(map[string]Validation, len(e.cfg.Files))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.cfg.Files {
		name := name
		g.Go(func() error {
			v := ValidateFile(gctx, filepath.Join(e.cfg.RawDir, name), e.cfg.MinFileSizeMB)
			if v.Valid {
				e.log.Info().Str("file", name).Float64("size_mb", v.SizeMB).Int("columns", v.Columns).
					Int("sample_rows", v.RowsSample).Msg("file validated")
			} else {
				e.log.Error().Str("file", name).Str("error", v.Error).Msg("file validation failed")
			}
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateFile checks that path exists, is at least minSizeMB, and parses
// as CSV with at least one data row in its first SampleRows rows.
func ValidateFile(ctx context.Context, path string, minSizeMB float64) Validation {
	src := file.NewLocal(path)
	st, err := src.Stat()
	if err != nil {
		return Validation{Error: "file not found after download"}
	}
	v := Validation{Exists: true, SizeMB: round2(st.SizeMB())}

	var (
		g      errgroup.Group
		sample pcsv.Result
		hash   string
	)
	g.Go(func() error {
		rc, err := src.Open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()
		sample, err = pcsv.NewParser(pcsv.Options{Lenient: true, MaxRows: SampleRows}).Parse(rc)
		return err
	})
	g.Go(func() error {
		var err error
		hash, err = HashFile(ctx, path)
		return err
	})
	if err := g.Wait(); err != nil {
		v.Error = err.Error()
		return v
	}

	v.RowsSample = len(sample.Rows)
	v.Columns = len(sample.Header)
	v.ColumnNames = sample.Header
	v.Hash = hash
	v.Valid = st.SizeMB() >= minSizeMB && v.RowsSample > 0
	if !v.Valid {
		v.Error = fmt.Sprintf("size %.2f MB (min %.2f) with %d sample rows", v.SizeMB, minSizeMB, v.RowsSample)
	}
	return v
}

type metadata struct {
	Timestamp  time.Time             `json:"extraction_timestamp"`
	ID         string                `json:"extraction_id"`
	Dataset    string                `json:"dataset_slug"`
	Download   *DownloadInfo         `json:"download_info"`
	Validation map[string]Validation `json:"validation_results"`
	Files      []string              `json:"files_extracted"`
	Success    bool                  `json:"extraction_success"`
}

func (e *Extractor) saveMetadata(res Result) (string, error) {
	now := e.now()
	m := metadata{
		Timestamp:  now,
		ID:         res.ID,
		Dataset:    e.cfg.Dataset,
		Download:   res.Download,
		Validation: res.Validation,
		Files:      e.cfg.Files,
		Success:    res.Download != nil && res.Download.Success && res.Success,
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(e.cfg.MetadataDir, fmt.Sprintf("extraction_metadata_%s.json", now.Format("20060102_150405")))
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	e.log.Info().Str("path", p).Msg("saved extraction metadata")
	return p, nil
}

// Report renders a human-readable extraction summary.
func Report(cfg Config, res Result, now time.Time) string {
	valid, total := 0, 0.0
	for _, v := range res.Validation {
		if v.Valid {
			valid++
		}
		total += v.SizeMB
	}
	var dl time.Duration
	if res.Download != nil {
		dl = res.Download.Duration
	}
	rate := 0.0
	if n := len(cfg.Files); n > 0 {
		rate = float64(valid) / float64(n) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DATA EXTRACTION REPORT\n%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Dataset: %s\nExtraction Time: %s\n\n", cfg.Dataset, now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "SUMMARY:\n- Files Expected: %d\n- Files Downloaded: %d\n- Files Valid: %d\n", len(cfg.Files), len(res.Validation), valid)
	fmt.Fprintf(&b, "- Total Size: %.2f MB\n- Download Time: %.2f seconds\n- Success Rate: %.1f%%\n\nFILE DETAILS:", total, dl.Seconds(), rate)
	for _, name := range cfg.Files {
		v := res.Validation[name]
		if v.Valid {
			fmt.Fprintf(&b, "\n[ok] %s: %.2f MB, %d columns, hash %s", name, v.SizeMB, v.Columns, short(v.Hash))
		} else {
			fmt.Fprintf(&b, "\n[failed] %s: %s", name, v.Error)
		}
	}
	return b.String()
}
