package mcmc

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// MixedAccepts returns the accepted positions after discarding the
// first burn iterations, in chain order. A negative burn defaults to
// one tenth of the recorded history.
func (c *Chain) MixedAccepts(burn int) [][]float64 {
	if burn < 0 {
		burn = len(c.History) / 10
	}
	var out [][]float64
	for i := burn; i < len(c.History); i++ {
		if c.History[i].Accepted {
			out = append(out, append([]float64(nil), c.History[i].Position...))
		}
	}
	return out
}

// BestFit returns the lowest-posterior iteration seen anywhere in the
// history, failed proposals excluded.
func (c *Chain) BestFit() (Iteration, bool) {
	best := Iteration{Likelihood: math.Inf(1)}
	found := false
	for _, it := range c.History {
		if p := it.Posterior(); !math.IsInf(p, 1) && p < best.Posterior() {
			best = it
			found = true
		}
	}
	return best, found
}

// ParamSummary is the posterior marginal for one parameter, in log10
// units.
type ParamSummary struct {
	Name   string
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
}

// Summarize computes per-parameter marginals over the post-burn
// accepted positions. names must match the position layout.
func (c *Chain) Summarize(names []string, burn int) ([]ParamSummary, error) {
	accepts := c.MixedAccepts(burn)
	if len(accepts) == 0 {
		return nil, fmt.Errorf("mcmc: no accepted positions after burn-in of %d", burn)
	}
	if len(names) != len(accepts[0]) {
		return nil, fmt.Errorf("mcmc: %d names for %d-dimensional positions", len(names), len(accepts[0]))
	}
	out := make([]ParamSummary, len(names))
	col := make([]float64, len(accepts))
	for p := range names {
		for i, pos := range accepts {
			col[i] = pos[p]
		}
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("mcmc: summarize %s: %w", names[p], err)
		}
		median, err := stats.Median(col)
		if err != nil {
			return nil, fmt.Errorf("mcmc: summarize %s: %w", names[p], err)
		}
		std, err := stats.StandardDeviation(col)
		if err != nil {
			return nil, fmt.Errorf("mcmc: summarize %s: %w", names[p], err)
		}
		lo, err := stats.Min(col)
		if err != nil {
			return nil, fmt.Errorf("mcmc: summarize %s: %w", names[p], err)
		}
		hi, err := stats.Max(col)
		if err != nil {
			return nil, fmt.Errorf("mcmc: summarize %s: %w", names[p], err)
		}
		out[p] = ParamSummary{Name: names[p], Mean: mean, Median: median, Std: std, Min: lo, Max: hi}
	}
	return out, nil
}
