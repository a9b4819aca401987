// Package config holds the retailetl configuration model. Values come from,
// in increasing precedence: built-in defaults, the YAML config file, a .env
// file, process environment variables and finally CLI flags (applied by the
// cli package).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// Job labels metrics and log lines for this pipeline.
	Job string `mapstructure:"job"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogPretty selects the console writer instead of JSON lines.
	LogPretty bool `mapstructure:"log_pretty"`

	Paths   PathsConfig   `mapstructure:"paths"`
	Extract ExtractConfig `mapstructure:"extract"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// PathsConfig locates the pipeline's working directories.
type PathsConfig struct {
	Raw       string `mapstructure:"raw"`
	Processed string `mapstructure:"processed"`
	Backup    string `mapstructure:"backup"`
	Metadata  string `mapstructure:"metadata"`
	Logs      string `mapstructure:"logs"`
}

// ExtractConfig controls dataset download and freshness checks.
type ExtractConfig struct {
	// Dataset is the "owner/name" slug of the dataset.
	Dataset string `mapstructure:"dataset"`

	// Files lists the files expected inside the dataset.
	Files []string `mapstructure:"files"`

	// BaseURL is the dataset API root.
	BaseURL string `mapstructure:"base_url"`

	MinFileSizeMB  float64 `mapstructure:"min_file_size_mb"`
	MaxFileAgeDays int     `mapstructure:"max_file_age_days"`

	// Force always re-downloads.
	Force bool `mapstructure:"force"`

	HTTP HTTPConfig `mapstructure:"http"`

	// Credentials are read from the environment only.
	Username string `mapstructure:"-"`
	Key      string `mapstructure:"-"`
}

// HTTPConfig tunes the retrying download client.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	InitialBackoffMS int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `mapstructure:"max_backoff_ms"`
}

// StorageConfig selects the database the normalized tables are loaded into.
type StorageConfig struct {
	// Kind selects the backend: postgres, sqlite, mssql or mysql.
	Kind string `mapstructure:"kind"`

	// DSN is the backend connection string.
	DSN string `mapstructure:"dsn"`

	// BatchSize is the number of rows per bulk insert.
	BatchSize int `mapstructure:"batch_size"`

	// Replace drops and recreates the tables before loading.
	Replace bool `mapstructure:"replace"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is "none", "prometheus" or "datadog".
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Job:      "retailetl",
		LogLevel: "info",
		Paths: PathsConfig{
			Raw:       filepath.Join("data", "raw"),
			Processed: filepath.Join("data", "processed"),
			Backup:    filepath.Join("data", "backup"),
			Metadata:  filepath.Join("data", "metadata"),
			Logs:      "logs",
		},
		Extract: ExtractConfig{
			Dataset:        "ytgangster/online-sales-in-usa",
			Files:          []string{"sales.csv"},
			BaseURL:        "https://www.kaggle.com/api/v1",
			MinFileSizeMB:  1,
			MaxFileAgeDays: 30,
			HTTP: HTTPConfig{
				TimeoutSeconds:   300,
				MaxRetries:       3,
				InitialBackoffMS: 500,
				MaxBackoffMS:     10000,
			},
		},
		Storage: StorageConfig{
			Kind:      "postgres",
			BatchSize: 1000,
			Replace:   true,
		},
		Metrics: MetricsConfig{
			Backend: "none",
		},
	}
}

// Load reads configuration.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./retailetl.yaml
// 3. ~/.config/retailetl/config.yaml
//
// A .env file in the working directory is loaded into the process
// environment first; variables already set are not overridden.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("retailetl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "retailetl"))
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overlays environment variables onto c. lookup is os.LookupEnv in
// production.
//
//	KAGGLE_USERNAME, KAGGLE_KEY         dataset credentials
//	DATABASE_URL                        storage.dsn
//	POSTGRES_HOST/PORT/DB/USER/PASSWORD storage.dsn when kind is postgres and
//	                                    no DSN is set
//	METRICS_BACKEND, PUSHGATEWAY_URL,
//	DD_AGENT_ADDR                       metrics.*
//	LOG_LEVEL                           log_level
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}
	if v := get("KAGGLE_USERNAME"); v != "" {
		c.Extract.Username = v
	}
	if v := get("KAGGLE_KEY"); v != "" {
		c.Extract.Key = v
	}
	if v := get("METRICS_BACKEND"); v != "" {
		c.Metrics.Backend = v
	}
	if v := get("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := get("DD_AGENT_ADDR"); v != "" {
		c.Metrics.DatadogAddr = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := get("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		return
	}
	if c.Storage.DSN == "" && c.Storage.Kind == "postgres" && get("POSTGRES_HOST") != "" {
		c.Storage.DSN = PostgresDSN(get("POSTGRES_HOST"), get("POSTGRES_PORT"), get("POSTGRES_DB"), get("POSTGRES_USER"), get("POSTGRES_PASSWORD"))
	}
}

// PostgresDSN builds a postgres:// URL. Port defaults to 5432.
func PostgresDSN(host, port, db, user, password string) string {
	if port == "" {
		port = strconv.Itoa(5432)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// RawFile returns the path of an expected extract file.
func (c *Config) RawFile(name string) string {
	return filepath.Join(c.Paths.Raw, name)
}

// SalesFile is the extract the transform reads.
func (c *Config) SalesFile() string {
	if len(c.Extract.Files) == 0 {
		return c.RawFile("sales.csv")
	}
	return c.RawFile(c.Extract.Files[0])
}
