// Package cli implements the retailetl command-line interface.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"retailetl/internal/config"
	"retailetl/internal/logging"
	"retailetl/internal/metrics"
	"retailetl/internal/metrics/datadog"
	"retailetl/internal/metrics/prompush"
	"retailetl/pkg/version"
)

const defaultDatadogAddr = "localhost:8125"

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile        string
	logLevel       string
	storageKind    string
	dsn            string
	metricsBackend string

	cfg       *config.Config
	logCloser io.Closer
}

// Execute runs the root command with args.
func Execute(args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	a.shutdown()
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "retailetl",
		Short: "Batch ETL for the online sales dataset",
		Long: `retailetl downloads the online sales extract, cleans and reconciles it,
splits it into customers, products and orders, and loads the tables into
PostgreSQL, SQLite, SQL Server or MySQL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./retailetl.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.storageKind, "storage-kind", "", "storage backend (postgres, sqlite, mssql, mysql)")
	pf.StringVar(&a.dsn, "dsn", "", "storage connection string")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend (none, prometheus, datadog)")

	root.AddCommand(
		a.runCmd(),
		a.extractCmd(),
		a.transformCmd(),
		a.loadCmd(),
		a.verifyCmd(),
		a.generateCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

// init loads configuration, applies the global flags and sets up logging
// and metrics.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.storageKind != "" {
		cfg.Storage.Kind = a.storageKind
	}
	if a.dsn != "" {
		cfg.Storage.DSN = a.dsn
	}
	if a.metricsBackend != "" {
		cfg.Metrics.Backend = a.metricsBackend
	}
	a.cfg = cfg

	closer, err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Dir:    cfg.Paths.Logs,
	})
	a.logCloser = closer
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if err := setupMetrics(cfg); err != nil {
		logging.Warn().Err(err).Str("backend", cfg.Metrics.Backend).Msg("metrics disabled")
	}
	return nil
}

func setupMetrics(cfg *config.Config) error {
	switch cfg.Metrics.Backend {
	case "", "none":
		return nil
	case "prometheus":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	case "datadog":
		addr := cfg.Metrics.DatadogAddr
		if addr == "" {
			addr = defaultDatadogAddr
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "retailetl.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	default:
		return fmt.Errorf("unknown metrics backend %q", cfg.Metrics.Backend)
	}
	logging.Info().Str("backend", cfg.Metrics.Backend).Msg("metrics enabled")
	return nil
}

func (a *app) shutdown() {
	if err := metrics.Flush(); err != nil {
		logging.Warn().Err(err).Msg("metrics flush failed")
	}
	metrics.Reset()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Info())
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and report issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := a.cfg.Validate()
			for _, iss := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if errs := config.Errors(issues); len(errs) > 0 {
				return errors.New("configuration is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})
	return cmd
}
