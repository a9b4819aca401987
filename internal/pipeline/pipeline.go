// Package pipeline wires the extract, transform and load stages into one
// run. Each stage is also exposed on its own so the CLI can run it
// separately.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"retailetl/internal/config"
	"retailetl/internal/datasource/httpds"
	"retailetl/internal/extract"
	"retailetl/internal/load"
	"retailetl/internal/logging"
	"retailetl/internal/metrics"
	"retailetl/internal/output"
	"retailetl/internal/retail"
	"retailetl/internal/storage"
	"retailetl/internal/verify"
)

// Stage names, also used as metric labels.
const (
	StageExtract   = "extract"
	StageValidate  = "validate_extract"
	StageTransform = "transform"
	StageOutput    = "output"
	StageLoad      = "load"
	StageVerify    = "verify"
)

// ErrStageFailed matches every error returned by Runner.Run.
var ErrStageFailed = errors.New("pipeline: stage failed")

// StageError names the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err) }

// Unwrap exposes both ErrStageFailed and the cause.
func (e *StageError) Unwrap() []error { return []error{ErrStageFailed, e.Err} }

// Test seams.
var (
	newDownloader = func(c config.ExtractConfig) extract.Downloader {
		return httpds.NewClient(httpds.Config{
			Timeout:        time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:     c.HTTP.MaxRetries,
			InitialBackoff: time.Duration(c.HTTP.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(c.HTTP.MaxBackoffMS) * time.Millisecond,
			Username:       c.Username,
			Password:       c.Key,
		})
	}
	newRepositoryFn = storage.New
	openVerifyDB    = verify.Open
)

// Options controls a run.
type Options struct {
	ForceExtract bool
	// SkipVerify leaves out the post-load checks.
	SkipVerify bool
}

// TransformSummary is what the transform stage reports.
type TransformSummary struct {
	Strategy   retail.Strategy         `json:"strategy"`
	RawRows    int                     `json:"raw_rows"`
	Quality    retail.QualityReport    `json:"quality"`
	Clean      retail.CleanStats       `json:"clean"`
	Tables     map[string]int          `json:"tables"`
	Validation retail.ValidationReport `json:"validation"`
	Outputs    map[string]string       `json:"outputs"`
	Duration   time.Duration           `json:"duration"`
}

// Summary is the outcome of a full run.
type Summary struct {
	RunID     string            `json:"run_id"`
	Success   bool              `json:"success"`
	Started   time.Time         `json:"started"`
	Duration  time.Duration     `json:"duration"`
	Extract   *extract.Result   `json:"extract,omitempty"`
	Transform *TransformSummary `json:"transform,omitempty"`
	Load      *load.Stats       `json:"load,omitempty"`
	Verify    *verify.Report    `json:"verify,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
}

// Runner runs pipeline stages for one configuration.
type Runner struct {
	cfg *config.Config
	log zerolog.Logger
	now func() time.Time
}

// New returns a Runner.
func New(cfg *config.Config, log zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, log: log, now: time.Now}
}

// Run executes extract, transform and load (plus verification unless
// skipped). It stops at the first failing stage; the returned Summary
// always carries the run ID and whatever stages completed.
func (r *Runner) Run(ctx context.Context, opt Options) (Summary, error) {
	start := r.now()
	sum := Summary{RunID: uuid.NewString(), Started: start}
	log := r.log.With().Str("run_id", sum.RunID).Logger()
	log.Info().Msg("pipeline started")

	fail := func(stage string, err error) (Summary, error) {
		sum.Duration = r.now().Sub(start)
		sum.Errors = append(sum.Errors, err.Error())
		log.Error().Err(err).Str("stage", stage).Dur("elapsed", sum.Duration).Msg("pipeline failed")
		metrics.RecordStep(r.cfg.Job, "pipeline", err, sum.Duration)
		return sum, &StageError{Stage: stage, Err: err}
	}

	ex, err := r.Extract(ctx, opt.ForceExtract)
	sum.Extract = &ex
	if err != nil {
		return fail(StageExtract, err)
	}
	if err := r.checkExtract(ex); err != nil {
		return fail(StageValidate, err)
	}

	ts, tables, err := r.Transform(ctx)
	if err != nil {
		return fail(StageTransform, err)
	}
	sum.Transform = &ts

	ls, err := r.Load(ctx, tables)
	sum.Load = &ls
	if err != nil {
		return fail(StageLoad, err)
	}

	if !opt.SkipVerify {
		rep, err := r.Verify(ctx)
		if err != nil {
			return fail(StageVerify, err)
		}
		sum.Verify = &rep
	}

	sum.Success = true
	sum.Duration = r.now().Sub(start)
	metrics.RecordStep(r.cfg.Job, "pipeline", nil, sum.Duration)
	log.Info().Dur("elapsed", sum.Duration).Msg("pipeline completed")
	return sum, nil
}

// checkExtract requires the sales file to exist and to have validated.
func (r *Runner) checkExtract(ex extract.Result) error {
	path := r.cfg.SalesFile()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("extracted data file not found: %w", err)
	}
	name := filepath.Base(path)
	if v, ok := ex.Validation[name]; ok && !v.Valid {
		return fmt.Errorf("extracted data file %s failed validation: %s", name, v.Error)
	}
	return nil
}

// Extract runs the extract stage.
func (r *Runner) Extract(ctx context.Context, force bool) (extract.Result, error) {
	c := r.cfg.Extract
	ex := extract.New(extract.Config{
		Dataset:       c.Dataset,
		BaseURL:       c.BaseURL,
		Files:         c.Files,
		RawDir:        r.cfg.Paths.Raw,
		BackupDir:     r.cfg.Paths.Backup,
		MetadataDir:   r.cfg.Paths.Metadata,
		MinFileSizeMB: c.MinFileSizeMB,
		MaxFileAge:    time.Duration(c.MaxFileAgeDays) * 24 * time.Hour,
		Username:      c.Username,
		Key:           c.Key,
	}, newDownloader(c), r.log.With().Str("stage", StageExtract).Logger())

	start := r.now()
	res, err := ex.Run(ctx, force || c.Force)
	metrics.RecordStep(r.cfg.Job, StageExtract, err, r.now().Sub(start))
	return res, err
}

// Transform reads the sales extract, transforms it and writes the
// normalized tables to the processed directory.
func (r *Runner) Transform(ctx context.Context) (TransformSummary, retail.Tables, error) {
	start := r.now()
	lg := r.log.With().Str("stage", StageTransform).Logger()
	res, err := retail.Transform(ctx, r.cfg.SalesFile(), retail.Options{Sink: logging.Sink{L: &lg}})
	metrics.RecordStep(r.cfg.Job, StageTransform, err, r.now().Sub(start))
	if err != nil {
		return TransformSummary{}, nil, err
	}

	job := r.cfg.Job
	metrics.RecordRow(job, "raw", int64(res.RawRows))
	metrics.RecordRow(job, "cleaned", int64(res.Clean.OutputRows))
	metrics.RecordRow(job, "filtered", int64(res.Clean.Filtered))
	for name, v := range res.Quality {
		metrics.RecordQuality(job, name, v)
	}
	for name, ok := range res.Validation {
		metrics.RecordCheck(job, name, ok)
	}
	if failed := res.Validation.Failed(); len(failed) > 0 {
		lg.Warn().Strs("checks", failed).Msg("table validation checks failed")
	}

	outStart := r.now()
	paths, err := output.WriteTables(ctx, r.cfg.Paths.Processed, res.Tables)
	metrics.RecordStep(job, StageOutput, err, r.now().Sub(outStart))
	if err != nil {
		return TransformSummary{}, nil, fmt.Errorf("write processed tables: %w", err)
	}

	return TransformSummary{
		Strategy:   res.Strategy,
		RawRows:    res.RawRows,
		Quality:    res.Quality,
		Clean:      res.Clean,
		Tables:     res.Tables.Counts(),
		Validation: res.Validation,
		Outputs:    paths,
		Duration:   r.now().Sub(start),
	}, res.Tables, nil
}

// Load writes tables to the configured storage backend.
func (r *Runner) Load(ctx context.Context, tables retail.Tables) (load.Stats, error) {
	start := r.now()
	st, err := r.load(ctx, tables)
	metrics.RecordStep(r.cfg.Job, StageLoad, err, r.now().Sub(start))
	return st, err
}

func (r *Runner) load(ctx context.Context, tables retail.Tables) (load.Stats, error) {
	s := r.cfg.Storage
	repo, err := newRepositoryFn(ctx, storage.Config{Kind: s.Kind, DSN: s.DSN})
	if err != nil {
		return load.Stats{}, fmt.Errorf("open %s: %w", s.Kind, err)
	}
	defer repo.Close()

	l := load.New(repo, load.Config{
		Kind:      s.Kind,
		BatchSize: s.BatchSize,
		Replace:   s.Replace,
		Job:       r.cfg.Job,
	}, r.log.With().Str("stage", StageLoad).Logger())
	return l.Load(ctx, tables)
}

// LoadProcessed loads the tables previously written by Transform.
func (r *Runner) LoadProcessed(ctx context.Context) (load.Stats, error) {
	tables, err := output.ReadTables(ctx, r.cfg.Paths.Processed)
	if err != nil {
		return load.Stats{}, err
	}
	return r.Load(ctx, tables)
}

// Verify runs the post-load checks against the configured database.
func (r *Runner) Verify(ctx context.Context) (verify.Report, error) {
	start := r.now()
	rep, err := r.verify(ctx)
	metrics.RecordStep(r.cfg.Job, StageVerify, err, r.now().Sub(start))
	return rep, err
}

func (r *Runner) verify(ctx context.Context) (verify.Report, error) {
	db, err := openVerifyDB(ctx, r.cfg.Storage.Kind, r.cfg.Storage.DSN)
	if err != nil {
		return verify.Report{}, err
	}
	defer db.Close()
	return verify.New(db, r.cfg.Storage.Kind, "", r.cfg.Job, r.log.With().Str("stage", StageVerify).Logger()).Run(ctx)
}
