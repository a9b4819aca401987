package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// StorageKinds are the supported storage backends.
var StorageKinds = []string{"postgres", "sqlite", "mssql", "mysql"}

// MetricsBackends are the supported metrics backends.
var MetricsBackends = []string{"none", "prometheus", "datadog"}

// Validate performs static checks and returns every issue found. It does not
// mutate c. Credentials are not checked here; they are only needed when a
// download actually happens.
func (c *Config) Validate() []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it is used for metrics labeling")
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			add(SeverityWarning, "log_level", "unknown log level %q; falling back to info", c.LogLevel)
		}
	}

	for path, v := range map[string]string{
		"paths.raw":       c.Paths.Raw,
		"paths.processed": c.Paths.Processed,
		"paths.backup":    c.Paths.Backup,
		"paths.metadata":  c.Paths.Metadata,
	} {
		if strings.TrimSpace(v) == "" {
			add(SeverityError, path, "path must not be empty")
		}
	}

	issues = append(issues, validateExtract(c.Extract)...)
	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

// Errors filters issues down to SeverityError.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

func validateExtract(e ExtractConfig) []Issue {
	var issues []Issue
	if parts := strings.Split(e.Dataset, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		issues = append(issues, Issue{SeverityError, "extract.dataset", fmt.Sprintf("dataset must be owner/name, got %q", e.Dataset)})
	}
	if len(e.Files) == 0 {
		issues = append(issues, Issue{SeverityError, "extract.files", "at least one expected file is required"})
	}
	if _, err := url.ParseRequestURI(e.BaseURL); err != nil {
		issues = append(issues, Issue{SeverityError, "extract.base_url", fmt.Sprintf("invalid url %q", e.BaseURL)})
	}
	if e.MinFileSizeMB < 0 {
		issues = append(issues, Issue{SeverityError, "extract.min_file_size_mb", "must not be negative"})
	}
	if e.MaxFileAgeDays <= 0 {
		issues = append(issues, Issue{SeverityWarning, "extract.max_file_age_days", "non-positive age makes every existing file stale"})
	}
	if e.HTTP.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "extract.http.max_retries", "must not be negative"})
	}
	if e.HTTP.MaxBackoffMS < e.HTTP.InitialBackoffMS {
		issues = append(issues, Issue{SeverityWarning, "extract.http.max_backoff_ms", "max backoff is below initial backoff"})
	}
	return issues
}

func validateStorage(s StorageConfig) []Issue {
	var issues []Issue
	if !contains(StorageKinds, s.Kind) {
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unsupported storage kind %q (want one of %s)", s.Kind, strings.Join(StorageKinds, ", "))})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityWarning, "storage.dsn", "no DSN configured; load and verify will fail"})
	}
	if s.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "storage.batch_size", "batch_size must be > 0"})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue
	b := m.Backend
	if b == "" {
		b = "none"
	}
	if !contains(MetricsBackends, b) {
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)})
	}
	if b == "prometheus" && m.PushgatewayURL == "" {
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "prometheus backend requires a pushgateway url"})
	}
	if b == "datadog" && m.DatadogAddr == "" {
		issues = append(issues, Issue{SeverityWarning, "metrics.datadog_addr", "no datadog agent address; the client default is used"})
	}
	return issues
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
