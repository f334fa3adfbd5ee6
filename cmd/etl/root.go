package main

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/pipeline"
	"salesetl/internal/quality"
)

const defaultConfig = "configs/pipeline.yaml"

// options are the persistent flags shared by every subcommand.
type options struct {
	cfgPath string
	envFile string
	verbose bool
	strict  bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "etl",
		Short: "Sales ETL: raw CSV sources to a fact table and five summaries",
		Long: `etl reads the sales, products and customers CSV sources, validates them,
builds the denormalized fact_sales table plus five summary tables, and writes
them as Parquet (and a flat CSV export) to the destination.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.cfgPath, "config", defaultConfig, "pipeline config file (.json, .yaml or .yml)")
	pf.StringVar(&o.envFile, "env-file", "", "KEY=VALUE file loaded into the environment (default: .env when present)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logs")
	pf.BoolVar(&o.strict, "strict", false, "abort on dangling foreign keys (overrides strict_integrity)")

	root.AddCommand(newRunCmd(o), newCheckCmd(o), newConfigCmd(o))
	return root
}

// load reads the pipeline file with env overrides and defaults applied, then
// applies flag overrides and validates the result. Precedence is
// file < environment < flags.
func (o *options) load(cmd *cobra.Command) (config.Pipeline, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Pipeline{}, &configError{err}
	}
	p, err := config.Load(o.cfgPath)
	if err != nil {
		return config.Pipeline{}, &configError{err}
	}
	if cmd.Flags().Changed("strict") {
		p.StrictIntegrity = o.strict
	}

	issues := config.ValidatePipeline(p)
	printIssues(cmd.ErrOrStderr(), issues)
	if config.HasErrors(issues) {
		return config.Pipeline{}, &configError{fmt.Errorf("configuration is invalid: %s", o.cfgPath)}
	}
	return p, nil
}

func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.load(cmd)
			if err != nil {
				return err
			}
			backend, flush := setupMetrics(p, o.verbose, cmd.ErrOrStderr())
			defer flush()

			rc := pipeline.NewRunContext(p, cmd.ErrOrStderr())
			rc.Metrics = metrics.NewRecorder(backend, rc.Job)
			if o.verbose {
				rc.Logger.Printf("config: file=%s parser=%s workers=%d partitions=%d metrics=%s",
					o.cfgPath, p.Parser.Kind, p.Runtime.Workers, p.Runtime.Partitions, p.Metrics.Backend)
			}
			rep, err := pipeline.NewJob(rc).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s fact_rows=%d outputs=%d duration=%s\n",
				rep.RunID, rep.Status, rep.FactRows, len(rep.Outputs), rep.Duration())
			return nil
		},
	}
}

var errChecksFailed = errors.New("data-quality checks failed")

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the data-quality suite over the raw sources",
		Long: `check runs the pre-release gate: file presence, required columns, order_id
uniqueness and referential integrity of sales against products and customers.
Dangling keys always fail here, whatever strict_integrity says.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.load(cmd)
			if err != nil {
				return err
			}
			backend, flush := setupMetrics(p, o.verbose, cmd.ErrOrStderr())
			defer flush()

			rc := pipeline.NewRunContext(p, cmd.ErrOrStderr())
			rc.Metrics = metrics.NewRecorder(backend, rc.Job)
			res, err := pipeline.Check(cmd.Context(), rc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range res.Checks {
				fmt.Fprintf(out, "%-4s %s", c.Status, c.Name)
				if c.Detail != "" {
					fmt.Fprintf(out, ": %s", c.Detail)
				}
				fmt.Fprintln(out)
			}
			if res.Status != quality.StatusPass {
				return fmt.Errorf("%w: %d of %d", errChecksFailed, len(res.Failed()), len(res.Checks))
			}
			return nil
		},
	}
}

func newConfigCmd(o *options) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect pipeline configuration",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := o.load(cmd); err != nil {
				return err
			}
			log.New(cmd.ErrOrStderr(), "", log.LstdFlags).Printf("Configuration is valid: %v", o.cfgPath)
			return nil
		},
	})
	return cfg
}
