package cli

import (
	"errors"
	"fmt"
	"math"

	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lolab-msm/erbbfit/internal/mcmc"
	"github.com/lolab-msm/erbbfit/internal/store"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Database string
	RunID    string
	Burn     int
	BestOut  string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Summarize a persisted calibration run",
		Long: `Read a persisted chain from the SQLite store and report the best
fit plus per-parameter posterior statistics over the mixed portion.

Example:
  erbbfit extract --db ./chains.db --run 0190c3...
  erbbfit extract --db ./chains.db --run 0190c3... --burn 5000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite chain store (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run identifier (required)")
	cmd.Flags().IntVar(&opts.Burn, "burn", -1, "burn-in iterations to discard (-1 = nsteps/10)")
	cmd.Flags().StringVar(&opts.BestOut, "best-fit", "", "write best-fit parameters as YAML to this path")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

type extractReport struct {
	Run       store.Run           `json:"run"`
	BestScore float64             `json:"best_posterior"`
	BestFit   map[string]float64  `json:"best_fit"`
	Summary   []mcmc.ParamSummary `json:"summary"`
}

func runExtract(opts *ExtractOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	run, err := st.GetRun(ctx, opts.RunID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("unknown run %q", opts.RunID), nil)
		}
		return WrapExitError(ExitFailure, "failed to read run", err)
	}
	history, err := st.ReadChain(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read chain", err)
	}

	chain := &mcmc.Chain{History: history}
	summary, err := chain.Summarize(run.Params, opts.Burn)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to summarize chain", err)
	}

	report := extractReport{Run: run, Summary: summary, BestScore: math.Inf(1)}
	if best, ok := chain.BestFit(); ok {
		report.BestScore = best.Posterior()
		report.BestFit = map[string]float64{}
		for i, name := range run.Params {
			report.BestFit[name] = math.Pow(10, best.Position[i])
		}
	}

	if opts.BestOut != "" && report.BestFit != nil {
		raw, err := yaml.Marshal(report.BestFit)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode best fit", err)
		}
		if err := os.WriteFile(opts.BestOut, raw, 0o644); err != nil {
			return WrapExitError(ExitFailure, "failed to write best fit", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.Success(report)
	}
	fmt.Fprintf(out, "run:            %s (%s, %s, %d steps, seed %d)\n",
		run.ID, run.CellLine, run.Scenario, run.Nsteps, run.Seed)
	fmt.Fprintf(out, "best posterior: %.6g\n", report.BestScore)
	fmt.Fprintf(out, "%-24s %10s %10s %10s %10s %10s\n", "parameter", "mean", "median", "std", "min", "max")
	for _, s := range summary {
		fmt.Fprintf(out, "%-24s %10.4f %10.4f %10.4f %10.4f %10.4f\n",
			s.Name, s.Mean, s.Median, s.Std, s.Min, s.Max)
	}
	return nil
}
