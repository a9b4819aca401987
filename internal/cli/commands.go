package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"retailetl/internal/datagen"
	"retailetl/internal/logging"
	"retailetl/internal/pipeline"
)

// runResult is the JSON line printed by the run command.
type runResult struct {
	Success  bool              `json:"success"`
	RunID    string            `json:"run_id,omitempty"`
	Duration float64           `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Summary  *pipeline.Summary `json:"summary,omitempty"`
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.New(a.cfg, logging.Logger)
}

func (a *app) runCmd() *cobra.Command {
	var (
		force      bool
		skipVerify bool
		full       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extract, transform and load",
		Long: `Run the whole pipeline: refresh the raw extract if needed, transform it
into customers, products and orders, write the processed CSVs and load them
into the configured database. A JSON result is printed on stdout; the exit
status is non-zero when any stage fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			sum, err := a.runner().Run(ctx, pipeline.Options{ForceExtract: force, SkipVerify: skipVerify})
			res := runResult{Success: err == nil, RunID: sum.RunID, Duration: sum.Duration.Seconds()}
			if err != nil {
				res.Error = err.Error()
			}
			if full {
				res.Summary = &sum
			}
			if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force-extract", false, "download the dataset even when local files are fresh")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip the post-load database checks")
	cmd.Flags().BoolVar(&full, "summary", false, "include the per-stage summary in the output")
	return cmd
}

func (a *app) extractCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Download and validate the raw sales extract",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			res, err := a.runner().Extract(ctx, force)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "download even when local files are fresh")
	return cmd
}

func (a *app) transformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Transform the raw extract into processed tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			sum, _, err := a.runner().Transform(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the processed tables into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			st, err := a.runner().LoadProcessed(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run sanity queries against the loaded database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			rep, err := a.runner().Verify(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var (
		out  string
		opt  datagen.Options
		from string
		to   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic sales extract with realistic defects",
		Long: `Generate a synthetic sales CSV with the same columns as the real extract.
A share of the line items (--defect-rate) carries one defect each: exact
duplicates, re-ordered line items, value or total mismatches, non-positive
amounts, missing contact fields or messy text.

Example:
  retailetl generate --rows 50000 --seed 42 --defect-rate 0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.SalesFile()
			}
			var err error
			if from != "" {
				if opt.Start, err = time.Parse("2006-01-02", from); err != nil {
					return err
				}
			}
			if to != "" {
				if opt.End, err = time.Parse("2006-01-02", to); err != nil {
					return err
				}
			}
			st, err := datagen.WriteFile(out, opt)
			if err != nil {
				return err
			}
			logging.Info().Str("path", out).Int("rows", st.Rows).Msg("synthetic extract written")
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output path (default: the configured sales file)")
	f.IntVar(&opt.Rows, "rows", 1000, "number of line items")
	f.Uint64Var(&opt.Seed, "seed", 0, "random seed (0 = random)")
	f.IntVar(&opt.Customers, "customers", 0, "customer pool size (default rows/5)")
	f.IntVar(&opt.Products, "products", 0, "product pool size (default 50)")
	f.Float64Var(&opt.DefectRate, "defect-rate", 0.05, "share of line items given a defect")
	f.StringVar(&from, "from", "", "first order date (YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "last order date (YYYY-MM-DD)")
	return cmd
}
