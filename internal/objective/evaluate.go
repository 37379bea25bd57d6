package objective

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/lolab-msm/erbbfit/internal/odenet"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

// DefaultPriorVar matches the loose log10-space prior used for rate
// constants spanning several decades.
const DefaultPriorVar = 6.0

// Opts configures an Evaluator.
type Opts struct {
	// Estimate names the parameters exposed to the sampler, in the
	// order positions are laid out. Empty means every rate constant
	// referenced by a rule, in declaration order.
	Estimate []string
	// PriorVar is the variance of the log10-space Gaussian prior
	// (default DefaultPriorVar).
	PriorVar float64
	// Normalize min-max scales each simulated and experimental
	// observable series to [0,1] before comparison, so datasets
	// recorded in arbitrary units compare by shape. Already-scaled
	// data passes through unchanged.
	Normalize bool
	// Integrator defaults to solver.RK45{}.
	Integrator solver.Integrator
	// Solver tolerances passed through to every run.
	ATol, RTol float64
	// Logger receives per-evaluation debug output; nil disables it.
	Logger *slog.Logger
}

// Result is one scored position. The sampler minimizes Posterior.
type Result struct {
	Likelihood float64
	Prior      float64
}

// Posterior is the negative log-posterior up to a constant.
func (r Result) Posterior() float64 { return r.Likelihood + r.Prior }

// Evaluator scores log10-space positions against a dataset. It is safe
// for concurrent use; every evaluation builds its own parameter map and
// state vectors.
type Evaluator struct {
	net      *rulenet.Network
	ds       *Dataset
	opts     Opts
	estimate []string
	mean     []float64 // log10 of declared values, the prior center
}

// New builds an evaluator. Every estimated name must be a declared
// model parameter with a positive value (positions live in log10
// space), and every dataset observable must exist in the model.
func New(net *rulenet.Network, ds *Dataset, opts Opts) (*Evaluator, error) {
	if opts.PriorVar == 0 {
		opts.PriorVar = DefaultPriorVar
	}
	if opts.Integrator == nil {
		opts.Integrator = solver.RK45{}
	}
	est := opts.Estimate
	if len(est) == 0 {
		for _, p := range net.Model.RuleParams() {
			est = append(est, p.Name)
		}
	}
	mean := make([]float64, len(est))
	for i, name := range est {
		p := net.Model.Param(name)
		if p == nil {
			return nil, fmt.Errorf("objective: estimated parameter %q is not declared", name)
		}
		if p.Value <= 0 {
			return nil, fmt.Errorf("objective: estimated parameter %q has non-positive value %g", name, p.Value)
		}
		mean[i] = math.Log10(p.Value)
	}
	obsNames := make(map[string]bool)
	for _, od := range net.Observables {
		obsNames[od.Name] = true
	}
	for _, c := range ds.Conditions {
		for name := range c.Series {
			if !obsNames[name] {
				return nil, fmt.Errorf("objective: condition %q measures unknown observable %q", c.Name, name)
			}
		}
	}
	return &Evaluator{net: net, ds: ds, opts: opts, estimate: est, mean: mean}, nil
}

// Params returns the estimated parameter names in position order.
func (e *Evaluator) Params() []string {
	return append([]string(nil), e.estimate...)
}

// InitialPosition returns the prior center: log10 of the declared
// parameter values.
func (e *Evaluator) InitialPosition() []float64 {
	return append([]float64(nil), e.mean...)
}

// ParamMap converts a position into a name -> linear-value map.
func (e *Evaluator) ParamMap(position []float64) map[string]float64 {
	m := make(map[string]float64, len(e.estimate))
	for i, name := range e.estimate {
		m[name] = math.Pow(10, position[i])
	}
	return m
}

// Prior is the log10-space Gaussian penalty around the declared values.
func (e *Evaluator) Prior(position []float64) float64 {
	var sum float64
	for i, x := range position {
		d := x - e.mean[i]
		sum += d * d
	}
	return sum / (2 * e.opts.PriorVar)
}

// Evaluate scores a position. Conditions run in parallel, each with its
// own parameter map and solver state. An IntegrationFailure from any
// condition is returned as-is so callers can treat the position as
// infinitely bad without aborting a sampling run.
func (e *Evaluator) Evaluate(ctx context.Context, position []float64) (Result, error) {
	if len(position) != len(e.estimate) {
		return Result{}, fmt.Errorf("objective: position has %d entries, want %d", len(position), len(e.estimate))
	}
	res := Result{Prior: e.Prior(position)}

	like := make([]float64, len(e.ds.Conditions))
	errs := make([]error, len(e.ds.Conditions))
	var wg sync.WaitGroup
	for ci := range e.ds.Conditions {
		wg.Add(1)
		go func(ci int) {
			defer wg.Done()
			like[ci], errs[ci] = e.evalCondition(ctx, &e.ds.Conditions[ci], e.ParamMap(position))
		}(ci)
	}
	wg.Wait()

	for ci, err := range errs {
		if err != nil {
			return Result{}, fmt.Errorf("condition %q: %w", e.ds.Conditions[ci].Name, err)
		}
		res.Likelihood += like[ci]
	}
	if e.opts.Logger != nil {
		e.opts.Logger.Debug("objective evaluated",
			"likelihood", res.Likelihood, "prior", res.Prior)
	}
	return res, nil
}

func (e *Evaluator) evalCondition(ctx context.Context, c *Condition, params map[string]float64) (float64, error) {
	sys, err := odenet.Assemble(e.net, params)
	if err != nil {
		return 0, err
	}
	y0, err := sys.Initial(c.Overrides)
	if err != nil {
		return 0, err
	}
	grid := c.timeGrid()
	tr, err := e.opts.Integrator.Run(ctx, sys, y0, grid, solver.Opts{ATol: e.opts.ATol, RTol: e.opts.RTol})
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(c.Series))
	for name := range c.Series {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		s := c.Series[name]
		sim := make([]float64, len(grid))
		for i := range grid {
			v, err := sys.Observe(name, tr.State(i))
			if err != nil {
				return 0, err
			}
			sim[i] = v
		}
		obs := s.Values
		if e.opts.Normalize {
			minMaxScale(sim)
			obs = append([]float64(nil), s.Values...)
			minMaxScale(obs)
		}
		for i, t := range s.Times {
			d := obs[i] - sim[nearestIndex(grid, t)]
			sum += d * d / (2 * s.Sigmas[i] * s.Sigmas[i])
		}
	}
	return sum, nil
}
