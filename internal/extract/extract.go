// Package extract keeps the raw sales extract on disk fresh. It checks the
// files already present, downloads the dataset archive when they are
// missing, too small or stale, validates the result and writes an
// extraction metadata record.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCredentials is returned when a download is needed but no dataset
	// credentials are configured.
	ErrCredentials = errors.New("extract: dataset credentials not configured (KAGGLE_USERNAME, KAGGLE_KEY)")
	// ErrDownload wraps any failure fetching or unpacking the archive.
	ErrDownload = errors.New("extract: download failed")
)

// Config configures an Extractor.
type Config struct {
	Dataset string
	BaseURL string
	Files   []string

	RawDir      string
	BackupDir   string
	MetadataDir string

	MinFileSizeMB float64
	MaxFileAge    time.Duration

	Username string
	Key      string
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, dst string) (int64, error)
}

// Extractor runs the extract stage.
type Extractor struct {
	cfg Config
	dl  Downloader
	log zerolog.Logger
	now func() time.Time
}

// New returns an Extractor.
func New(cfg Config, dl Downloader, log zerolog.Logger) *Extractor {
	return &Extractor{cfg: cfg, dl: dl, log: log, now: time.Now}
}

// FileInfo describes an expected file found on disk before extraction.
type FileInfo struct {
	Path         string    `json:"path"`
	SizeMB       float64   `json:"size_mb"`
	AgeDays      float64   `json:"age_days"`
	Hash         string    `json:"hash"`
	LastModified time.Time `json:"last_modified"`
	ValidSize    bool      `json:"valid_size"`
	Recent       bool      `json:"recent"`
}

// DownloadInfo describes one archive download.
type DownloadInfo struct {
	Success   bool          `json:"success"`
	Dataset   string        `json:"dataset_slug"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"download_time"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	ID              string                `json:"id"`
	Success         bool                  `json:"success"`
	SkippedDownload bool                  `json:"skipped_download"`
	Existing        map[string]*FileInfo  `json:"existing"`
	Download        *DownloadInfo         `json:"download_info,omitempty"`
	Validation      map[string]Validation `json:"validation_results"`
	Duration        time.Duration         `json:"processing_time"`
	MetadataPath    string                `json:"metadata_path,omitempty"`
}

// Run checks, downloads if needed (or forced), and validates the expected
// files. A skipped download still reports each existing file as valid.
func (e *Extractor) Run(ctx context.Context, force bool) (Result, error) {
	start := e.now()
	res := Result{ID: uuid.NewString()}
	e.log.Info().Str("dataset", e.cfg.Dataset).Bool("force", force).Msg("starting data extraction")

	for _, d := range []string{e.cfg.RawDir, e.cfg.BackupDir, e.cfg.MetadataDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return res, fmt.Errorf("extract: create %s: %w", d, err)
		}
	}

	existing, err := e.checkExisting(ctx)
	if err != nil {
		return res, err
	}
	res.Existing = existing

	if !force && !e.needDownload(existing) {
		e.log.Info().Msg("all data files are recent and valid, skipping download")
		res.Success = true
		res.SkippedDownload = true
		res.Validation = make(map[string]Validation, len(existing))
		for name, fi := range existing {
			res.Validation[name] = Validation{Exists: true, SizeMB: fi.SizeMB, Hash: fi.Hash, Valid: true, Skipped: true}
		}
		res.Duration = e.now().Sub(start)
		return res, nil
	}

	if e.cfg.Username == "" || e.cfg.Key == "" {
		return res, ErrCredentials
	}
	e.log.Info().Str("user", e.cfg.Username).Str("key", MaskKey(e.cfg.Key)).Msg("using dataset credentials")

	e.backup(existing)

	info := e.download(ctx)
	res.Download = &info
	if !info.Success {
		return res, fmt.Errorf("%w: %s", ErrDownload, info.Error)
	}

	res.Validation, err = e.validate(ctx)
	if err != nil {
		return res, err
	}
	res.Success = allValid(res.Validation, e.cfg.Files)
	res.Duration = e.now().Sub(start)

	path, err := e.saveMetadata(res)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not save extraction metadata")
	}
	res.MetadataPath = path

	e.log.Info().Msg(Report(e.cfg, res, e.now()))
	return res, nil
}

func (e *Extractor) needDownload(existing map[string]*FileInfo) bool {
	for _, name := range e.cfg.Files {
		fi := existing[name]
		if fi == nil {
			return true
		}
		if !fi.ValidSize || !fi.Recent {
			e.log.Info().Str("file", name).Msg("file is outdated or too small, will re-download")
			return true
		}
	}
	return false
}

// backup copies every existing expected file to
// <backup>/<name>_<YYYYMMDD_HHMMSS><ext>. Failures are logged, not returned.
func (e *Extractor) backup(existing map[string]*FileInfo) {
	ts := e.now().Format("20060102_150405")
	for name, fi := range existing {
		if fi == nil {
			continue
		}
		dst := filepath.Join(e.cfg.BackupDir, BackupName(name, ts))
		if err := copyFile(fi.Path, dst); err != nil {
			e.log.Warn().Err(err).Str("file", name).Msg("failed to back up existing file")
			continue
		}
		e.log.Info().Str("file", name).Str("backup", dst).Msg("backed up existing file")
	}
}

// BackupName returns the backup file name for name at timestamp ts.
func BackupName(name, ts string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), ts, ext)
}

// DownloadURL returns the archive URL of dataset under base.
func DownloadURL(base, dataset string) string {
	return strings.TrimRight(base, "/") + "/datasets/download/" + (&url.URL{Path: dataset}).EscapedPath()
}

func (e *Extractor) download(ctx context.Context) DownloadInfo {
	start := e.now()
	info := DownloadInfo{Dataset: e.cfg.Dataset}
	archive := filepath.Join(e.cfg.RawDir, ".download.zip")
	defer os.Remove(archive)

	u := DownloadURL(e.cfg.BaseURL, e.cfg.Dataset)
	e.log.Info().Str("url", u).Msg("starting download")
	n, err := e.dl.Download(ctx, u, archive)
	if err == nil {
		info.Bytes = n
		err = unpack(archive, e.cfg.RawDir, e.cfg.Files)
	}
	info.Duration = e.now().Sub(start)
	info.Timestamp = e.now()
	if err != nil {
		info.Error = err.Error()
		e.log.Error().Err(err).Msg("dataset download failed")
		return info
	}
	info.Success = true
	e.log.Info().Int64("bytes", n).Dur("elapsed", info.Duration).Msg("download completed")
	return info
}

// MaskKey hides all but the edges of a secret.
func MaskKey(key string) string {
	if len(key) > 12 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	return "***"
}

func allValid(v map[string]Validation, files []string) bool {
	for _, f := range files {
		if !v[f].Valid {
			return false
		}
	}
	return len(files) > 0
}
