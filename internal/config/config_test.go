package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "retailetl.yaml")
	yaml := `
job: nightly
log_level: debug
paths:
  raw: /srv/raw
storage:
  kind: sqlite
  dsn: file:retail.db
  batch_size: 250
extract:
  max_file_age_days: 7
  http:
    max_retries: 5
`
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, k := range []string{"DATABASE_URL", "POSTGRES_HOST", "LOG_LEVEL", "KAGGLE_USERNAME", "KAGGLE_KEY"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Job != "nightly" || cfg.LogLevel != "debug" {
		t.Fatalf("top-level got job=%q level=%q", cfg.Job, cfg.LogLevel)
	}
	if cfg.Paths.Raw != "/srv/raw" || cfg.Paths.Processed != filepath.Join("data", "processed") {
		t.Fatalf("paths got %+v", cfg.Paths)
	}
	if cfg.Storage.Kind != "sqlite" || cfg.Storage.DSN != "file:retail.db" || cfg.Storage.BatchSize != 250 || !cfg.Storage.Replace {
		t.Fatalf("storage got %+v", cfg.Storage)
	}
	if cfg.Extract.MaxFileAgeDays != 7 || cfg.Extract.HTTP.MaxRetries != 5 || cfg.Extract.HTTP.TimeoutSeconds != 300 {
		t.Fatalf("extract got %+v", cfg.Extract)
	}
	if cfg.Extract.Dataset != "ytgangster/online-sales-in-usa" {
		t.Fatalf("dataset default lost: %q", cfg.Extract.Dataset)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KAGGLE_USERNAME":   "ann",
		"KAGGLE_KEY":        "s3cret",
		"POSTGRES_HOST":     "db",
		"POSTGRES_DB":       "retail",
		"POSTGRES_USER":     "etl",
		"POSTGRES_PASSWORD": "p@ss",
		"METRICS_BACKEND":   "datadog",
		"DD_AGENT_ADDR":     "127.0.0.1:8125",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := DefaultConfig()
	c.ApplyEnv(lookup)
	if c.Extract.Username != "ann" || c.Extract.Key != "s3cret" {
		t.Fatalf("credentials got %q/%q", c.Extract.Username, c.Extract.Key)
	}
	if want := "postgres://etl:p%40ss@db:5432/retail?sslmode=disable"; c.Storage.DSN != want {
		t.Fatalf("dsn got %q want %q", c.Storage.DSN, want)
	}
	if c.Metrics.Backend != "datadog" || c.Metrics.DatadogAddr != "127.0.0.1:8125" {
		t.Fatalf("metrics got %+v", c.Metrics)
	}

	env["DATABASE_URL"] = "postgres://other/db"
	c = DefaultConfig()
	c.ApplyEnv(lookup)
	if c.Storage.DSN != "postgres://other/db" {
		t.Fatalf("DATABASE_URL not preferred: %q", c.Storage.DSN)
	}
}

func TestSalesFile(t *testing.T) {
	c := DefaultConfig()
	if got, want := c.SalesFile(), filepath.Join("data", "raw", "sales.csv"); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
