package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lolab-msm/erbbfit/internal/config"
	"github.com/lolab-msm/erbbfit/internal/erbb"
	"github.com/lolab-msm/erbbfit/internal/mcmc"
	"github.com/lolab-msm/erbbfit/internal/objective"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
	"github.com/lolab-msm/erbbfit/internal/store"
)

// CalibrateOptions holds flags for the calibrate command.
type CalibrateOptions struct {
	*RootOptions
	ConfigPath string
	Database   string
}

// NewCalibrateCommand creates the calibrate command.
func NewCalibrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalibrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run MCMC calibration against a config",
		Long: `Run annealed Metropolis-Hastings calibration of the ErbB model
rate constants against the datasets named in the config file.

Example:
  erbbfit calibrate --config a431.yaml
  erbbfit calibrate --config a431.yaml --db ./chains.db --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to calibration config YAML (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite path for chain persistence (overrides config)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

type calibrateReport struct {
	RunID      string  `json:"run_id,omitempty"`
	CellLine   string  `json:"cell_line"`
	Scenario   string  `json:"scenario"`
	Nsteps     int     `json:"nsteps"`
	AcceptRate float64 `json:"accept_rate"`
	Fails      int     `json:"failed_simulations"`
	BestScore  float64 `json:"best_posterior"`
}

func runCalibrate(opts *CalibrateOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	m, err := erbb.Build(cfg.CellLine, erbb.All())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build model", err)
	}
	if err := cfg.CheckParams(func(name string) bool { return m.Param(name) != nil }); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	slog.Info("expanding network", "cell_line", cfg.CellLine)
	net, err := rulenet.Expand(m, rulenet.Options{})
	if err != nil {
		return WrapExitError(ExitFailure, "network expansion failed", err)
	}
	slog.Info("network expanded", "species", net.Arena.Len(), "reactions", len(net.Reactions))

	ds, err := loadDatasets(cfg.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load datasets", err)
	}

	ev, err := objective.New(net, ds, objective.Opts{
		Estimate:  cfg.Estimate,
		PriorVar:  cfg.PriorVar,
		Normalize: cfg.Normalized(),
		ATol:      cfg.ATol,
		RTol:      cfg.RTol,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build objective", err)
	}

	slog.Info("starting chain", "scenario", cfg.Scenario, "nsteps", cfg.Nsteps, "seed", cfg.Seed)
	chain, err := mcmc.Run(ctx, ev, mcmc.Opts{
		Nsteps:       cfg.Nsteps,
		Seed:         cfg.Seed,
		Start:        ev.InitialPosition(),
		TStart:       cfg.Anneal.TStart,
		AnnealLength: cfg.Anneal.Length,
		Anneal:       mcmc.Schedule(cfg.Anneal.Schedule),
		UseHessian:   cfg.UseHessian(),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "calibration failed", err)
	}

	report := calibrateReport{
		CellLine:   cfg.CellLine,
		Scenario:   cfg.Scenario,
		Nsteps:     cfg.Nsteps,
		AcceptRate: chain.AcceptRate(),
		Fails:      chain.Fails,
	}
	if best, ok := chain.BestFit(); ok {
		report.BestScore = best.Posterior()
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store
	}
	if dbPath != "" {
		runID, err := persistChain(ctx, dbPath, opts.ConfigPath, cfg, ev.Params(), chain)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to persist chain", err)
		}
		report.RunID = runID
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.Success(report)
	}
	if report.RunID != "" {
		fmt.Fprintf(out, "run:            %s\n", report.RunID)
	}
	fmt.Fprintf(out, "cell line:      %s\n", report.CellLine)
	fmt.Fprintf(out, "scenario:       %s\n", report.Scenario)
	fmt.Fprintf(out, "steps:          %d\n", report.Nsteps)
	fmt.Fprintf(out, "accept rate:    %.3f\n", report.AcceptRate)
	fmt.Fprintf(out, "failed sims:    %d\n", report.Fails)
	fmt.Fprintf(out, "best posterior: %.6g\n", report.BestScore)
	return nil
}

// loadDatasets reads every dataset file and merges their conditions.
func loadDatasets(paths []string) (*objective.Dataset, error) {
	var merged objective.Dataset
	for _, p := range paths {
		ds, err := objective.LoadDataset(p)
		if err != nil {
			return nil, err
		}
		merged.Conditions = append(merged.Conditions, ds.Conditions...)
	}
	return &merged, nil
}

func persistChain(ctx context.Context, dbPath, configPath string, cfg *config.Config, params []string, chain *mcmc.Chain) (string, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(raw)

	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	runID := store.NewRunID()
	err = st.CreateRun(ctx, store.Run{
		ID:           runID,
		Scenario:     cfg.Scenario,
		CellLine:     cfg.CellLine,
		ConfigDigest: hex.EncodeToString(digest[:]),
		Params:       params,
		Nsteps:       cfg.Nsteps,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return "", err
	}
	if err := st.WriteChain(ctx, runID, chain); err != nil {
		return "", err
	}
	slog.Info("chain persisted", "run", runID, "iterations", len(chain.History))
	return runID, nil
}
