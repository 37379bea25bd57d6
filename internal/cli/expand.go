package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lolab-msm/erbbfit/internal/erbb"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
)

// ExpandOptions holds flags for the expand command.
type ExpandOptions struct {
	*RootOptions
	CellLine    string
	Layers      string
	ListSpecies bool
	MaxSpecies  int
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand the rule model into a reaction network",
		Long: `Expand the ErbB rule model for one cell line into a concrete
reaction network and report its size.

Example:
  erbbfit expand --cell-line A431 --layers receptor
  erbbfit expand --cell-line H1666 --species --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CellLine, "cell-line", "A431", "cell line initial amounts (A431|H1666|H3255)")
	cmd.Flags().StringVar(&opts.Layers, "layers", "full", "model layers (receptor|full)")
	cmd.Flags().BoolVar(&opts.ListSpecies, "species", false, "list canonical species strings")
	cmd.Flags().IntVar(&opts.MaxSpecies, "max-species", 0, "species cap for expansion (0 = default)")

	return cmd
}

type expandReport struct {
	CellLine    string   `json:"cell_line"`
	Layers      string   `json:"layers"`
	Species     int      `json:"species"`
	Reactions   int      `json:"reactions"`
	Observables []string `json:"observables"`
	SpeciesList []string `json:"species_list,omitempty"`
}

func runExpand(opts *ExpandOptions, cmd *cobra.Command) error {
	var layers erbb.Layers
	switch opts.Layers {
	case "receptor":
	case "full":
		layers = erbb.All()
	default:
		return WrapExitError(ExitCommandError, fmt.Sprintf("unknown layers %q", opts.Layers), nil)
	}

	m, err := erbb.Build(opts.CellLine, layers)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build model", err)
	}
	slog.Info("model built", "cell_line", opts.CellLine, "rules", len(m.Rules))

	net, err := rulenet.Expand(m, rulenet.Options{MaxSpecies: opts.MaxSpecies})
	if err != nil {
		return WrapExitError(ExitFailure, "network expansion failed", err)
	}

	report := expandReport{
		CellLine:  opts.CellLine,
		Layers:    opts.Layers,
		Species:   net.Arena.Len(),
		Reactions: len(net.Reactions),
	}
	for _, o := range net.Observables {
		report.Observables = append(report.Observables, o.Name)
	}
	if opts.ListSpecies {
		for _, sp := range net.Arena.All() {
			report.SpeciesList = append(report.SpeciesList, sp.Canonical())
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.Success(report)
	}
	fmt.Fprintf(out, "cell line:   %s\n", report.CellLine)
	fmt.Fprintf(out, "layers:      %s\n", report.Layers)
	fmt.Fprintf(out, "species:     %d\n", report.Species)
	fmt.Fprintf(out, "reactions:   %d\n", report.Reactions)
	fmt.Fprintf(out, "observables: %v\n", report.Observables)
	for _, s := range report.SpeciesList {
		fmt.Fprintln(out, s)
	}
	return nil
}
